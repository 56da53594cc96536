package utility

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/toolchat/internal/agent"
	"github.com/haasonsaas/toolchat/pkg/models"
)

func execute(t *testing.T, tool agent.Tool, args string) models.ToolResult {
	t.Helper()
	reg := agent.NewToolRegistry(nil)
	reg.MustRegister(tool)
	return reg.Execute(context.Background(), tool.Name(), json.RawMessage(args), nil)
}

func TestCalculator(t *testing.T) {
	tests := []struct {
		args     string
		wantOK   bool
		want     float64
		wantExpr string
	}{
		{`{"operation":"add","a":2,"b":3}`, true, 5, "2 + 3"},
		{`{"operation":"subtract","a":2,"b":3.5}`, true, -1.5, "2 - 3.5"},
		{`{"operation":"multiply","a":4,"b":2.5}`, true, 10, "4 × 2.5"},
		{`{"operation":"divide","a":9,"b":3}`, true, 3, "9 ÷ 3"},
		{`{"operation":"divide","a":1,"b":0}`, false, 0, ""},
		{`{"operation":"modulo","a":1,"b":2}`, false, 0, ""},
		{`{"operation":"add","a":"1","b":2}`, false, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			res := execute(t, NewCalculator(), tt.args)
			if res.Success != tt.wantOK {
				t.Fatalf("success = %v, want %v (%s)", res.Success, tt.wantOK, res.Error)
			}
			if !tt.wantOK {
				return
			}
			out := res.Data.(CalculatorOutput)
			if out.Result != tt.want || out.Expression != tt.wantExpr {
				t.Errorf("got %+v, want %v %q", out, tt.want, tt.wantExpr)
			}
		})
	}
}

func TestDatetime(t *testing.T) {
	fixed := time.Date(2024, time.March, 4, 10, 30, 0, 0, time.UTC)
	tool := NewDatetime(func() time.Time { return fixed })

	res := execute(t, tool, `{"format":"full","timezone":"UTC"}`)
	if !res.Success {
		t.Fatalf("datetime failed: %s", res.Error)
	}
	out := res.Data.(DatetimeOutput)
	if out.Date != "Monday, March 4, 2024" || out.Time != "10:30:00" {
		t.Errorf("out = %+v", out)
	}

	res = execute(t, tool, `{"format":"time"}`)
	if !res.Success {
		t.Fatalf("default zone failed: %s", res.Error)
	}
	out = res.Data.(DatetimeOutput)
	if out.Timezone != DefaultTimezone || out.Date != "" || !strings.HasPrefix(out.Time, "12:30") {
		t.Errorf("Israel time = %+v", out)
	}

	res = execute(t, tool, `{"timezone":"Mars/Olympus"}`)
	if res.Success {
		t.Error("unknown zone accepted")
	}
}

func TestRandom(t *testing.T) {
	tool := NewRandom(42)

	res := execute(t, tool, `{"type":"number","min":5,"max":7,"count":10}`)
	if !res.Success {
		t.Fatalf("number failed: %s", res.Error)
	}
	out := res.Data.(RandomOutput)
	if len(out.Results) != 10 {
		t.Fatalf("results = %d, want 10", len(out.Results))
	}
	for _, v := range out.Results {
		n := v.(int)
		if n < 5 || n > 7 {
			t.Errorf("value %d outside [5,7]", n)
		}
	}

	res = execute(t, tool, `{"type":"choice","choices":["a","b"]}`)
	if !res.Success {
		t.Fatalf("choice failed: %s", res.Error)
	}
	if c := res.Data.(RandomOutput).Result.(string); c != "a" && c != "b" {
		t.Errorf("choice = %q", c)
	}

	res = execute(t, tool, `{"type":"dice"}`)
	if d := res.Data.(RandomOutput).Result.(int); d < 1 || d > 6 {
		t.Errorf("dice = %d", d)
	}

	failures := []string{
		`{"type":"choice"}`,
		`{"type":"number","min":10,"max":1}`,
		`{"type":"number","count":50}`,
		`{"type":"lottery"}`,
	}
	for _, args := range failures {
		if res := execute(t, tool, args); res.Success {
			t.Errorf("%s succeeded", args)
		}
	}
}

func TestAll(t *testing.T) {
	reg := agent.NewToolRegistry(nil)
	for _, tool := range All() {
		if err := reg.Register(tool); err != nil {
			t.Fatalf("Register(%s): %v", tool.Name(), err)
		}
	}
	want := []string{"calculator", "datetime", "random"}
	got := reg.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}
