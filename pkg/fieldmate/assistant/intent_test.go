package assistant

import (
	"errors"
	"testing"
)

func TestParseIntentPlain(t *testing.T) {
	reply := `{"action": "create_task", "params": {"title": "Fix the boiler", "priority": "High", "dueDate": "tomorrow"}, "response": "Added it."}`

	intent, clarification, err := parseIntent(reply)
	if err != nil {
		t.Fatalf("parseIntent: %v", err)
	}
	if clarification != nil {
		t.Fatalf("unexpected clarification: %+v", clarification)
	}
	if intent.Action != ActionCreateTask {
		t.Errorf("action = %q, want %q", intent.Action, ActionCreateTask)
	}
	if intent.Params.Title != "Fix the boiler" {
		t.Errorf("title = %q", intent.Params.Title)
	}
	if intent.Params.DueDate != "tomorrow" {
		t.Errorf("dueDate = %q", intent.Params.DueDate)
	}
	if intent.Response != "Added it." {
		t.Errorf("response = %q", intent.Response)
	}
}

func TestParseIntentStripsCodeFence(t *testing.T) {
	reply := "```json\n{\"action\": \"fetch_tasks\", \"params\": {}}\n```"

	intent, _, err := parseIntent(reply)
	if err != nil {
		t.Fatalf("parseIntent: %v", err)
	}
	if intent.Action != ActionFetchTasks {
		t.Errorf("action = %q, want %q", intent.Action, ActionFetchTasks)
	}
}

func TestParseIntentEmptyActionIsChat(t *testing.T) {
	intent, _, err := parseIntent(`{"response": "G'day! How can I help?"}`)
	if err != nil {
		t.Fatalf("parseIntent: %v", err)
	}
	if intent.Action != ActionGeneralChat {
		t.Errorf("action = %q, want %q", intent.Action, ActionGeneralChat)
	}
}

func TestParseIntentUnknownAction(t *testing.T) {
	_, _, err := parseIntent(`{"action": "launch_rocket", "params": {}}`)
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
	var derr *DomainError
	if !errors.As(err, &derr) || derr.Kind != KindUpstreamParse {
		t.Errorf("error = %v, want upstream parse kind", err)
	}
}

func TestParseIntentClarification(t *testing.T) {
	reply := `{"needsClarification": {"field": "taskId", "question": "Which task?", "options": ["Quote the Smith job", "Fix the boiler"]}}`

	intent, clarification, err := parseIntent(reply)
	if err != nil {
		t.Fatalf("parseIntent: %v", err)
	}
	if intent != nil {
		t.Fatalf("unexpected intent: %+v", intent)
	}
	if clarification == nil || clarification.Field != "taskId" || len(clarification.Options) != 2 {
		t.Errorf("clarification = %+v", clarification)
	}
}

func TestParseIntentNotJSON(t *testing.T) {
	if _, _, err := parseIntent("Sure, I'll add that task for you!"); err == nil {
		t.Fatal("expected error for non-JSON reply")
	}
}

func TestCoerceParamsRepairsTypes(t *testing.T) {
	p := coerceParams(map[string]any{
		"amount":    "$1,250.00",
		"limit":     "5",
		"completed": "true",
		"title":     "  Quote the Smith job  ",
		"tags":      []any{"plumbing", "urgent"},
		"lineItems": []any{
			map[string]any{"description": "Labour", "quantity": 3.0, "unitAmount": "85"},
		},
	})

	if p.Amount == nil || *p.Amount != 1250 {
		t.Errorf("amount = %v, want 1250", p.Amount)
	}
	if p.Limit != 5 {
		t.Errorf("limit = %d, want 5", p.Limit)
	}
	if p.Completed == nil || !*p.Completed {
		t.Errorf("completed = %v, want true", p.Completed)
	}
	if p.Title != "Quote the Smith job" {
		t.Errorf("title = %q", p.Title)
	}
	if len(p.Tags) != 2 {
		t.Errorf("tags = %v", p.Tags)
	}
	if len(p.LineItems) != 1 || p.LineItems[0].UnitAmount != 85 || p.LineItems[0].Quantity != 3 {
		t.Errorf("lineItems = %+v", p.LineItems)
	}
}
