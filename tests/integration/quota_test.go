//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/talktivity/voicebridge/internal/quota"
)

func TestQuotaStatus_CallLifetime(t *testing.T) {
	env := SetupTestEnv(t)
	userID := int64(1001)
	token := TokenFor(t, env, userID)

	// Fresh user: the full lifetime cap is available.
	resp := DoRequest(t, env, "GET", "/api/v1/quota/call", nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("quota status failed: %d", resp.StatusCode)
	}
	data := ParseResponse(t, resp)["data"].(map[string]any)
	if got := data["remaining_seconds"].(float64); got != 300 {
		t.Errorf("remaining = %v, want 300", got)
	}
	if !data["can_start"].(bool) {
		t.Error("fresh user should be able to start a call")
	}

	// Burn the whole cap across two sessions.
	for _, d := range []int64{120, 180} {
		err := env.QuotaStore.RecordUsage(context.Background(), quota.UsageRecord{
			UserID: userID, Kind: quota.KindCall, DurationSeconds: d,
		})
		if err != nil {
			t.Fatalf("recording usage: %v", err)
		}
	}

	resp = DoRequest(t, env, "GET", "/api/v1/quota/call", nil, token)
	data = ParseResponse(t, resp)["data"].(map[string]any)
	if got := data["remaining_seconds"].(float64); got != 0 {
		t.Errorf("remaining = %v, want 0", got)
	}
	if data["can_start"].(bool) {
		t.Error("exhausted user should not be able to start a call")
	}
}

func TestQuotaStatus_PracticeNeedsSubscription(t *testing.T) {
	env := SetupTestEnv(t)
	userID := int64(1002)
	token := TokenFor(t, env, userID)

	resp := DoRequest(t, env, "GET", "/api/v1/quota/practice", nil, token)
	data := ParseResponse(t, resp)["data"].(map[string]any)
	if data["can_start"].(bool) {
		t.Error("practice without a subscription should be denied")
	}

	GrantSubscription(t, env, userID, quota.PlanBasic)

	resp = DoRequest(t, env, "GET", "/api/v1/quota/practice", nil, token)
	data = ParseResponse(t, resp)["data"].(map[string]any)
	if !data["can_start"].(bool) {
		t.Error("subscribed user should be able to practice")
	}
	if got := data["remaining_seconds"].(float64); got != 300 {
		t.Errorf("remaining = %v, want 300", got)
	}
}

func TestQuotaStatus_RoleplayPlanCaps(t *testing.T) {
	env := SetupTestEnv(t)
	basicUser, proUser := int64(1003), int64(1004)
	GrantSubscription(t, env, basicUser, quota.PlanBasic)
	GrantSubscription(t, env, proUser, quota.PlanPro)

	// Both spend 400s of roleplay today.
	for _, uid := range []int64{basicUser, proUser} {
		err := env.QuotaStore.RecordUsage(context.Background(), quota.UsageRecord{
			UserID: uid, Kind: quota.KindRoleplay, DurationSeconds: 400, Day: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("recording usage: %v", err)
		}
	}

	resp := DoRequest(t, env, "GET", "/api/v1/quota/roleplay", nil, TokenFor(t, env, basicUser))
	data := ParseResponse(t, resp)["data"].(map[string]any)
	if data["can_start"].(bool) {
		t.Error("basic user over 300s should be denied")
	}

	resp = DoRequest(t, env, "GET", "/api/v1/quota/roleplay", nil, TokenFor(t, env, proUser))
	data = ParseResponse(t, resp)["data"].(map[string]any)
	if !data["can_start"].(bool) {
		t.Error("pro user at 400s of 600s should be allowed")
	}
	if got := data["remaining_seconds"].(float64); got != 200 {
		t.Errorf("remaining = %v, want 200", got)
	}
}

func TestQuotaStatus_RequiresToken(t *testing.T) {
	env := SetupTestEnv(t)

	resp := DoRequest(t, env, "GET", "/api/v1/quota/call", nil, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestQuotaStatus_UnknownKind(t *testing.T) {
	env := SetupTestEnv(t)

	resp := DoRequest(t, env, "GET", "/api/v1/quota/karaoke", nil, TokenFor(t, env, 1005))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}
