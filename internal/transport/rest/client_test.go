package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"omcip.game/internal/protocol"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, nil)
}

func TestAuthTelegram(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/telegram" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["initData"] != "blob" {
			t.Errorf("initData = %q", body["initData"])
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
	})

	tok, err := c.AuthTelegram(context.Background(), "blob")
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	if tok != "tok" {
		t.Fatalf("token = %q", tok)
	}
}

func TestRequestsCarryBearerToken(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	})
	c.SetCredentials("tok-5", "42")

	if _, err := c.GameState(context.Background()); err != nil {
		t.Fatalf("game state: %v", err)
	}
	if gotAuth != "Bearer tok-5" {
		t.Fatalf("authorization = %q", gotAuth)
	}
}

func TestGameStateNestedUserWins(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"data": {
				"coins": 1,
				"user": {"coins": 250, "energy": 900, "level": 4}
			}
		}`))
	})

	snap, err := c.GameState(context.Background())
	if err != nil {
		t.Fatalf("game state: %v", err)
	}
	if snap.Coins == nil || *snap.Coins != 250 {
		t.Fatalf("coins = %v, want nested 250", snap.Coins)
	}
	if snap.Energy == nil || *snap.Energy != 900 {
		t.Fatalf("energy = %v", snap.Energy)
	}
	if snap.Level == nil || *snap.Level != 4 {
		t.Fatalf("level = %v", snap.Level)
	}
}

func TestGameStateFlatShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"coins": 77, "max_energy": 5000}`))
	})
	snap, err := c.GameState(context.Background())
	if err != nil {
		t.Fatalf("game state: %v", err)
	}
	if snap.Coins == nil || *snap.Coins != 77 {
		t.Fatalf("coins = %v", snap.Coins)
	}
	if snap.MaxEnergy == nil || *snap.MaxEnergy != 5000 {
		t.Fatalf("maxEnergy = %v", snap.MaxEnergy)
	}
	// Absent fields stay nil so reconciliation skips them.
	if snap.Energy != nil {
		t.Fatalf("energy = %v, want nil", snap.Energy)
	}
}

func TestSendClickPostsBatch(t *testing.T) {
	var got protocol.ClickBatchMsg
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/game/click" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"success": true}`))
	})

	batch := protocol.ClickBatchMsg{Count: 3, Timestamps: []int64{1, 2, 3}, CoinsPerClick: 2}
	if err := c.SendClick(context.Background(), batch); err != nil {
		t.Fatalf("send click: %v", err)
	}
	if got.Count != 3 || len(got.Timestamps) != 3 || got.CoinsPerClick != 2 {
		t.Fatalf("server saw %+v", got)
	}
}

func TestUpgradesListShapes(t *testing.T) {
	shapes := map[string]string{
		"bare":  `[{"id":"u1","base_cost":100}]`,
		"data":  `{"data":[{"id":"u1","base_cost":100}]}`,
		"keyed": `{"upgrades":[{"id":"u1","base_cost":100}]}`,
	}
	for name, body := range shapes {
		t.Run(name, func(t *testing.T) {
			payload := body
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(payload))
			})
			ups, err := c.Upgrades(context.Background())
			if err != nil {
				t.Fatalf("upgrades: %v", err)
			}
			if len(ups) != 1 || ups[0].ID != "u1" || ups[0].BaseCost != 100 {
				t.Fatalf("upgrades = %+v", ups)
			}
		})
	}
}

func TestErrorStatusSurfacesMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"message": "not enough coins"}`))
	})
	err := c.PurchaseUpgrade(context.Background(), "u1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "not enough coins") {
		t.Fatalf("error = %q", err)
	}
}

func TestRejectedSuccessFlag(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": false, "message": "cooldown"}`))
	})
	if err := c.PurchaseService(context.Background(), "svc"); err == nil {
		t.Fatalf("expected rejection despite 200")
	}
}

func TestTaskKindInference(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":"t1","requirement_value":15000,"progress":10,"reward_coins":500},
			{"id":"t2","requirement_value":3,"reward_coins":100}
		]`))
	})
	tasks, err := c.DailyTasks(context.Background())
	if err != nil {
		t.Fatalf("daily tasks: %v", err)
	}
	if tasks[0].Kind != "tap" {
		t.Fatalf("t1 kind = %q, want tap", tasks[0].Kind)
	}
	if tasks[1].Kind == "tap" {
		t.Fatalf("t2 inferred as tap")
	}
	if tasks[0].Weekly {
		t.Fatalf("daily task flagged weekly")
	}
}

func TestReferralTaskCounts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/referral/task-counts/42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"success": true, "dailyInvitedFriends": 2, "weeklyInvitedFriends": 9}`))
	})
	if _, _, err := c.ReferralTaskCounts(context.Background()); err == nil {
		t.Fatalf("expected error without user id")
	}
	c.SetCredentials("tok", "42")
	daily, weekly, err := c.ReferralTaskCounts(context.Background())
	if err != nil {
		t.Fatalf("task counts: %v", err)
	}
	if daily != 2 || weekly != 9 {
		t.Fatalf("counts = %d/%d, want 2/9", daily, weekly)
	}
}

func TestReferralStatsNeedsUserID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalReferrals": 6}`))
	})
	if _, err := c.ReferralStats(context.Background()); err == nil {
		t.Fatalf("expected error without user id")
	}
	c.SetCredentials("tok", "42")
	n, err := c.ReferralStats(context.Background())
	if err != nil {
		t.Fatalf("referral stats: %v", err)
	}
	if n != 6 {
		t.Fatalf("referrals = %d", n)
	}
}
