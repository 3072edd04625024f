// Package rest is the request/response side of the server contract:
// catalog and task fetches, purchase-class actions and the click
// fallback path.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"omcip.game/internal/catalog"
	"omcip.game/internal/game"
	"omcip.game/internal/protocol"
)

type Client struct {
	base string
	http *http.Client
	log  *log.Logger

	mu     sync.Mutex
	token  string
	userID string
}

func NewClient(base string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(log.Writer(), "[api] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Client{
		base: base,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  logger,
	}
}

// SetCredentials installs the opaque bearer token and the user id used
// in path-scoped referral endpoints.
func (c *Client) SetCredentials(token, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.userID = userID
}

func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.Lock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.Unlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var em struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &em)
		if em.Message != "" {
			return nil, fmt.Errorf("%s %s: %s (status %d)", method, path, em.Message, resp.StatusCode)
		}
		return nil, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return raw, nil
}

// unwrapData strips the optional `{"data": ...}` envelope some
// deployments wrap responses in.
func unwrapData(raw []byte) []byte {
	var probe struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && len(probe.Data) > 0 {
		return probe.Data
	}
	return raw
}

// AuthTelegram exchanges host-provided signed init data for a bearer
// token. The token contents are opaque to the client.
func (c *Client) AuthTelegram(ctx context.Context, initData string) (string, error) {
	raw, err := c.do(ctx, http.MethodPost, "/auth/telegram", map[string]string{"initData": initData})
	if err != nil {
		return "", err
	}
	var out struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", err
	}
	if out.Token != "" {
		return out.Token, nil
	}
	if out.AccessToken != "" {
		return out.AccessToken, nil
	}
	return "", fmt.Errorf("auth response carried no token")
}

// GameState pulls a full authoritative snapshot. Deployments differ on
// nesting the economy fields under "user"; nested values win where
// both are present.
func (c *Client) GameState(ctx context.Context) (protocol.StateSnapshot, error) {
	raw, err := c.do(ctx, http.MethodGet, "/game/state", nil)
	if err != nil {
		return protocol.StateSnapshot{}, err
	}
	return decodeSnapshot(unwrapData(raw))
}

func decodeSnapshot(raw []byte) (protocol.StateSnapshot, error) {
	var doc struct {
		protocol.StateSnapshot
		User *protocol.StateSnapshot `json:"user"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return protocol.StateSnapshot{}, err
	}
	s := doc.StateSnapshot
	if u := doc.User; u != nil {
		if u.Coins != nil {
			s.Coins = u.Coins
		}
		if u.Energy != nil {
			s.Energy = u.Energy
		}
		if u.MaxEnergy != nil {
			s.MaxEnergy = u.MaxEnergy
		}
		if u.EnergyRegenRate != nil {
			s.EnergyRegenRate = u.EnergyRegenRate
		}
		if u.Level != nil {
			s.Level = u.Level
		}
		if u.Experience != nil {
			s.Experience = u.Experience
		}
		if u.BaseCoinsPerClick != nil {
			s.BaseCoinsPerClick = u.BaseCoinsPerClick
		}
		if u.CoinsPerClick != nil {
			s.CoinsPerClick = u.CoinsPerClick
		}
	}
	return s, nil
}

// SendClick is the fallback delivery path for tap batches.
func (c *Client) SendClick(ctx context.Context, batch protocol.ClickBatchMsg) error {
	_, err := c.do(ctx, http.MethodPost, "/game/click", batch)
	return err
}

func (c *Client) Upgrades(ctx context.Context) ([]catalog.Upgrade, error) {
	raw, err := c.do(ctx, http.MethodGet, "/upgrades/with-conditions", nil)
	if err != nil {
		return nil, err
	}
	var list []catalog.Upgrade
	if err := decodeList(raw, "upgrades", &list); err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Order = i
	}
	return list, nil
}

func (c *Client) UserUpgrades(ctx context.Context) ([]string, error) {
	raw, err := c.do(ctx, http.MethodGet, "/upgrades/user/my-upgrades", nil)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		UpgradeID string `json:"upgrade_id"`
	}
	if err := decodeList(raw, "upgrades", &rows); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UpgradeID)
	}
	return ids, nil
}

func (c *Client) Services(ctx context.Context) ([]catalog.Service, error) {
	raw, err := c.do(ctx, http.MethodGet, "/services", nil)
	if err != nil {
		return nil, err
	}
	var list []catalog.Service
	if err := decodeList(raw, "services", &list); err != nil {
		return nil, err
	}
	return list, nil
}

// UserServices reads the purchase records embedded in the game-state
// payload; there is no dedicated endpoint for them.
func (c *Client) UserServices(ctx context.Context) ([]catalog.PurchaseRecord, error) {
	snap, err := c.GameState(ctx)
	if err != nil {
		return nil, err
	}
	recs := make([]catalog.PurchaseRecord, 0, len(snap.UserServices))
	for _, us := range snap.UserServices {
		at, err := time.Parse(time.RFC3339, us.PurchasedAt)
		if err != nil {
			continue
		}
		recs = append(recs, catalog.PurchaseRecord{ID: us.ServiceID, PurchasedAt: at})
	}
	return recs, nil
}

func (c *Client) AutoClickerStatus(ctx context.Context) (int, error) {
	raw, err := c.do(ctx, http.MethodGet, "/services/auto-clicker/status", nil)
	if err != nil {
		return 0, err
	}
	var out struct {
		Level int `json:"level"`
	}
	if err := json.Unmarshal(unwrapData(raw), &out); err != nil {
		return 0, err
	}
	return out.Level, nil
}

func (c *Client) ReferralStats(ctx context.Context) (int, error) {
	c.mu.Lock()
	uid := c.userID
	c.mu.Unlock()
	if uid == "" {
		return 0, fmt.Errorf("no user id")
	}
	raw, err := c.do(ctx, http.MethodGet, "/referral/stats/"+uid, nil)
	if err != nil {
		return 0, err
	}
	var out struct {
		TotalReferrals int `json:"totalReferrals"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, err
	}
	return out.TotalReferrals, nil
}

// ReferralTaskCounts fetches the per-window referral counters that
// back daily and weekly referral-task progress.
func (c *Client) ReferralTaskCounts(ctx context.Context) (int, int, error) {
	c.mu.Lock()
	uid := c.userID
	c.mu.Unlock()
	if uid == "" {
		return 0, 0, fmt.Errorf("no user id")
	}
	raw, err := c.do(ctx, http.MethodGet, "/referral/task-counts/"+uid, nil)
	if err != nil {
		return 0, 0, err
	}
	var out struct {
		Daily  int `json:"dailyInvitedFriends"`
		Weekly int `json:"weeklyInvitedFriends"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, 0, err
	}
	return out.Daily, out.Weekly, nil
}

// ReferralLink fetches the share link for inviting friends.
func (c *Client) ReferralLink(ctx context.Context) (string, error) {
	c.mu.Lock()
	uid := c.userID
	c.mu.Unlock()
	if uid == "" {
		return "", fmt.Errorf("no user id")
	}
	raw, err := c.do(ctx, http.MethodGet, "/referral/link/"+uid, nil)
	if err != nil {
		return "", err
	}
	var out struct {
		ReferralLink string `json:"referralLink"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", err
	}
	return out.ReferralLink, nil
}

// RegisterReferral reports a start-param referral code once at first
// launch.
func (c *Client) RegisterReferral(ctx context.Context, code string) error {
	c.mu.Lock()
	uid := c.userID
	c.mu.Unlock()
	_, err := c.do(ctx, http.MethodPost, "/referral/register", map[string]string{
		"userId":       uid,
		"referralCode": code,
	})
	return err
}

func (c *Client) DailyTasks(ctx context.Context) ([]game.TaskState, error) {
	return c.tasks(ctx, "/tasks/daily", false)
}

func (c *Client) WeeklyTasks(ctx context.Context) ([]game.TaskState, error) {
	return c.tasks(ctx, "/tasks/weekly", true)
}

type taskRow struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	Kind             string  `json:"kind"`
	RequirementValue float64 `json:"requirement_value"`
	Progress         float64 `json:"progress"`
	Completed        bool    `json:"completed"`
	Claimed          bool    `json:"claimed"`
	RewardCoins      float64 `json:"reward_coins"`
	UnlocksBg3       bool    `json:"unlocks_background3"`
}

func (c *Client) tasks(ctx context.Context, path string, weekly bool) ([]game.TaskState, error) {
	raw, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var rows []taskRow
	if err := decodeList(raw, "tasks", &rows); err != nil {
		return nil, err
	}
	out := make([]game.TaskState, 0, len(rows))
	for _, r := range rows {
		kind := catalog.TaskKind(r.Kind)
		if r.Kind == "" {
			// Older deployments omit the kind; tap tasks are the only
			// ones with five-figure requirements.
			if r.RequirementValue >= 10000 {
				kind = catalog.TaskKindTap
			} else {
				kind = catalog.TaskKindOther
			}
		}
		out = append(out, game.TaskState{
			Task: catalog.Task{
				ID:                 r.ID,
				Title:              r.Title,
				Kind:               kind,
				RequirementValue:   r.RequirementValue,
				RewardCoins:        r.RewardCoins,
				Weekly:             weekly,
				UnlocksBackground3: r.UnlocksBg3,
			},
			Progress:  r.Progress,
			Completed: r.Completed,
			Claimed:   r.Claimed,
		})
	}
	return out, nil
}

func (c *Client) LoginRewards(ctx context.Context) ([]game.LoginRewardState, int, error) {
	raw, err := c.do(ctx, http.MethodGet, "/login-rewards", nil)
	if err != nil {
		return nil, 0, err
	}
	var out struct {
		Rewards []struct {
			Day          int     `json:"day"`
			RewardCoins  float64 `json:"reward_coins"`
			BoostMult    float64 `json:"boost_multiplier"`
			BoostMins    int     `json:"boost_minutes"`
			Claimed      bool    `json:"claimed"`
			ClaimedToday bool    `json:"claimed_today"`
		} `json:"rewards"`
		CurrentStreak int `json:"current_streak"`
	}
	if err := json.Unmarshal(unwrapData(raw), &out); err != nil {
		return nil, 0, err
	}
	rewards := make([]game.LoginRewardState, 0, len(out.Rewards))
	for _, r := range out.Rewards {
		rewards = append(rewards, game.LoginRewardState{
			LoginRewardDay: catalog.LoginRewardDay{
				Day:         r.Day,
				RewardCoins: r.RewardCoins,
				BoostMult:   r.BoostMult,
				BoostMins:   r.BoostMins,
			},
			Claimed:      r.Claimed,
			ClaimedToday: r.ClaimedToday,
		})
	}
	return rewards, out.CurrentStreak, nil
}

type successDoc struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func decodeSuccess(raw []byte) error {
	var s successDoc
	if err := json.Unmarshal(unwrapData(raw), &s); err != nil {
		// Bare 2xx with no body counts as success.
		return nil
	}
	if s.Message != "" && !s.Success {
		return fmt.Errorf("rejected: %s", s.Message)
	}
	if !s.Success {
		return fmt.Errorf("rejected")
	}
	return nil
}

func (c *Client) PurchaseUpgrade(ctx context.Context, id string) error {
	raw, err := c.do(ctx, http.MethodPost, "/upgrades/"+id+"/purchase", nil)
	if err != nil {
		return err
	}
	return decodeSuccess(raw)
}

func (c *Client) PurchaseAutoClickerLevel(ctx context.Context) (int, error) {
	raw, err := c.do(ctx, http.MethodPost, "/services/auto-clicker/purchase", nil)
	if err != nil {
		return 0, err
	}
	if err := decodeSuccess(raw); err != nil {
		return 0, err
	}
	var out struct {
		NewLevel int `json:"new_level"`
	}
	_ = json.Unmarshal(unwrapData(raw), &out)
	return out.NewLevel, nil
}

func (c *Client) PurchaseService(ctx context.Context, id string) error {
	raw, err := c.do(ctx, http.MethodPost, "/services/"+id+"/purchase", nil)
	if err != nil {
		return err
	}
	return decodeSuccess(raw)
}

func (c *Client) PurchaseCharacter3(ctx context.Context, cost float64) error {
	raw, err := c.do(ctx, http.MethodPost, "/characters/3/purchase", map[string]float64{"cost": cost})
	if err != nil {
		return err
	}
	return decodeSuccess(raw)
}

func (c *Client) ClaimTaskReward(ctx context.Context, id string) (float64, error) {
	raw, err := c.do(ctx, http.MethodPost, "/tasks/"+id+"/claim", nil)
	if err != nil {
		return 0, err
	}
	if err := decodeSuccess(raw); err != nil {
		return 0, err
	}
	var out struct {
		RewardCoins float64 `json:"reward_coins"`
	}
	_ = json.Unmarshal(unwrapData(raw), &out)
	return out.RewardCoins, nil
}

func (c *Client) ClaimLoginReward(ctx context.Context, day int) (float64, error) {
	raw, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/login-rewards/%d/claim", day), nil)
	if err != nil {
		return 0, err
	}
	if err := decodeSuccess(raw); err != nil {
		return 0, err
	}
	var out struct {
		RewardCoins float64 `json:"reward_coins"`
	}
	_ = json.Unmarshal(unwrapData(raw), &out)
	return out.RewardCoins, nil
}

func (c *Client) SkipDailyTask(ctx context.Context, id string) error {
	raw, err := c.do(ctx, http.MethodPost, "/login-rewards/skip/"+id, nil)
	if err != nil {
		return err
	}
	return decodeSuccess(raw)
}

// decodeList tolerates the three list shapes the backend has shipped:
// a bare array, {"data":[...]}, and {"<key>":[...]}.
func decodeList(raw []byte, key string, out any) error {
	body := unwrapData(raw)
	if err := json.Unmarshal(body, out); err == nil {
		return nil
	}
	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(body, &keyed); err != nil {
		return fmt.Errorf("unexpected list shape")
	}
	if inner, ok := keyed[key]; ok {
		return json.Unmarshal(inner, out)
	}
	return fmt.Errorf("unexpected list shape: no %q field", key)
}
