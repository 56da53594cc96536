package agent

import "testing"

func TestToolCallAccumulator(t *testing.T) {
	acc := NewToolCallAccumulator()
	deltas := []*ToolCallDelta{
		{Index: 1, ID: "b", Name: "weather", Arguments: `{"city":`},
		{Index: 0, ID: "a", Name: "echo"},
		{Index: 0, Arguments: `{"text":`},
		{Index: 1, Arguments: `"Haifa"}`},
		{Index: 0, Arguments: `"hi"}`},
		nil,
		{Index: 2, Arguments: `{}`},
	}
	for _, d := range deltas {
		acc.Add(d)
	}

	if acc.Len() != 3 {
		t.Errorf("Len() = %d, want 3", acc.Len())
	}
	calls := acc.Calls()
	if len(calls) != 2 {
		t.Fatalf("Calls() = %+v, want 2 named calls", calls)
	}
	if calls[0].ID != "a" || calls[0].Arguments != `{"text":"hi"}` {
		t.Errorf("call 0 = %+v", calls[0])
	}
	if calls[1].Name != "weather" || calls[1].Arguments != `{"city":"Haifa"}` {
		t.Errorf("call 1 = %+v", calls[1])
	}
}

func TestToolCallAccumulator_LaterIDOverrides(t *testing.T) {
	acc := NewToolCallAccumulator()
	acc.Add(&ToolCallDelta{Index: 0, ID: "first", Name: "echo"})
	acc.Add(&ToolCallDelta{Index: 0, ID: "second"})
	if got := acc.Calls()[0].ID; got != "second" {
		t.Errorf("ID = %q, want second", got)
	}
}
