package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skygateai/skygate/pkg/domain"
)

func step(action domain.Action, params domain.Params) domain.Step {
	return domain.Step{StateID: "s1", Drone: "d1", Action: action, Params: params}
}

func TestAdvance(t *testing.T) {
	tests := []struct {
		name string
		from domain.Position
		step domain.Step
		want domain.Position
	}{
		{
			name: "takeoff sets altitude",
			step: step(domain.ActionTakeoff, domain.Params{"altitude": int64(15)}),
			want: domain.Position{Z: 15},
		},
		{
			name: "takeoff honours alt alias",
			step: step(domain.ActionTakeoff, domain.Params{"alt": 22.5}),
			want: domain.Position{Z: 22.5},
		},
		{
			name: "takeoff without altitude assumes default",
			step: step(domain.ActionTakeoff, domain.Params{}),
			want: domain.Position{Z: 10},
		},
		{
			name: "takeoff prefers altitude over alt",
			step: step(domain.ActionTakeoff, domain.Params{"altitude": int64(30), "alt": int64(5)}),
			want: domain.Position{Z: 30},
		},
		{
			name: "goto overwrites only named axes",
			from: domain.Position{X: 1, Y: 2, Z: 3},
			step: step(domain.ActionGoto, domain.Params{"x": int64(10), "z": int64(40)}),
			want: domain.Position{X: 10, Y: 2, Z: 40},
		},
		{
			name: "goto ignores non-numeric axis values",
			from: domain.Position{X: 1, Y: 2, Z: 3},
			step: step(domain.ActionGoto, domain.Params{"x": "east", "y": int64(9)}),
			want: domain.Position{X: 1, Y: 9, Z: 3},
		},
		{
			name: "move north",
			step: step(domain.ActionMove, domain.Params{"direction": "north", "distance": int64(50)}),
			want: domain.Position{Y: 50},
		},
		{
			name: "move south",
			step: step(domain.ActionMove, domain.Params{"direction": "SOUTH", "distance": int64(5)}),
			want: domain.Position{Y: -5},
		},
		{
			name: "move east",
			step: step(domain.ActionMove, domain.Params{"direction": "east", "distance": 2.5}),
			want: domain.Position{X: 2.5},
		},
		{
			name: "move west",
			step: step(domain.ActionMove, domain.Params{"direction": "west", "distance": int64(4)}),
			want: domain.Position{X: -4},
		},
		{
			name: "move up",
			from: domain.Position{Z: 10},
			step: step(domain.ActionMove, domain.Params{"direction": "up", "distance": int64(7)}),
			want: domain.Position{Z: 17},
		},
		{
			name: "move down",
			from: domain.Position{Z: 10},
			step: step(domain.ActionMove, domain.Params{"direction": "down", "distance": int64(4)}),
			want: domain.Position{Z: 6},
		},
		{
			name: "move matches direction by substring",
			step: step(domain.ActionMove, domain.Params{"direction": "northeast", "distance": int64(10)}),
			want: domain.Position{Y: 10},
		},
		{
			name: "move with unknown direction stays put",
			from: domain.Position{X: 3},
			step: step(domain.ActionMove, domain.Params{"direction": "sideways", "distance": int64(10)}),
			want: domain.Position{X: 3},
		},
		{
			name: "move without distance stays put",
			from: domain.Position{Y: 8},
			step: step(domain.ActionMove, domain.Params{"direction": "north"}),
			want: domain.Position{Y: 8},
		},
		{
			name: "land zeroes altitude only",
			from: domain.Position{X: 40, Y: -20, Z: 35},
			step: step(domain.ActionLand, domain.Params{}),
			want: domain.Position{X: 40, Y: -20},
		},
		{
			name: "non-motion actions hold position",
			from: domain.Position{X: 5, Y: 5, Z: 20},
			step: step(domain.ActionYaw, domain.Params{"yaw": int64(90)}),
			want: domain.Position{X: 5, Y: 5, Z: 20},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Advance(tc.from, tc.step))
		})
	}
}
