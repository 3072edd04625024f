package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	stateSchema := compile("state.schema.json")
	clickSchema := compile("click.schema.json")
	clickResultSchema := compile("click_result.schema.json")

	var state any
	_ = json.Unmarshal([]byte(`{
	  "type":"game:state",
	  "data":{
	    "coins":1523.5,
	    "energy":9400,
	    "max_energy":10000,
	    "energy_regen_rate":1,
	    "level":4,
	    "experience":812,
	    "base_coins_per_click":3,
	    "active_boosts":[{"type":"tap_multiplier","multiplier":2,"ends_at":"2025-01-01T00:10:00Z","remaining_seconds":312}],
	    "unlocked_characters":[1,2],
	    "unlocked_teeth":[1,2],
	    "unlocked_backgrounds":[1],
	    "invited_friends_count":3,
	    "login_streak_started_after_tooth2":true,
	    "user_services":[{"service_id":"svc-whitening","purchased_at":"2024-12-28T10:00:00Z"}]
	  }
	}`), &state)
	validate(stateSchema, state)

	var click any
	_ = json.Unmarshal([]byte(`{
	  "type":"game:click",
	  "data":{"count":3,"timestamps":[1735600000100,1735600000160,1735600000230],"coins_per_click":3}
	}`), &click)
	validate(clickSchema, click)

	var result any
	_ = json.Unmarshal([]byte(`{
	  "type":"game:click:result",
	  "data":{"coins":1532.5,"energy":9391,"current_multiplier":2}
	}`), &result)
	validate(clickResultSchema, result)
}
