package bot

import (
	"testing"
	"time"

	"coinsignals/internal/models"
)

func agingPosition(created time.Time) *models.Position {
	return &models.Position{
		Pair:    "BTC-XYZ",
		Price:   0.05,
		Created: created,
		Limits:  models.Limits{Loss: 0.0465, Profit: 0.052},
	}
}

func TestAgedLimitsBrackets(t *testing.T) {
	cfg := &testConfig(false).Trading
	now := time.Date(2023, 11, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		age         time.Duration
		wantBracket string
		wantLoss    float64
		wantProfit  float64
	}{
		{
			name:        "свежая позиция",
			age:         10 * time.Minute,
			wantBracket: bracketFresh,
			wantLoss:    0.0465, // 0.05 * 0.93
			wantProfit:  0.052,  // 0.05 * 1.04
		},
		{
			name:        "граница свежести",
			age:         30 * time.Minute,
			wantBracket: bracketFresh,
			wantLoss:    0.0465,
			wantProfit:  0.052,
		},
		{
			name:        "лежалая позиция",
			age:         45 * time.Minute,
			wantBracket: bracketStale,
			wantLoss:    0.047, // 0.05 * 0.94
			wantProfit:  0.0515,
		},
		{
			name:        "старая позиция",
			age:         2 * time.Hour,
			wantBracket: bracketOld,
			wantLoss:    0.0475, // 0.05 * 0.95
			wantProfit:  0.051,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := agingPosition(now.Add(-tt.age))
			got := agedLimits(cfg, pos, now)

			if got.Bracket != tt.wantBracket {
				t.Errorf("bracket = %q, want %q", got.Bracket, tt.wantBracket)
			}
			if got.Age != tt.age {
				t.Errorf("age = %v, want %v", got.Age, tt.age)
			}
			if !closeTo(got.Limits.Loss, tt.wantLoss) {
				t.Errorf("loss = %v, want %v", got.Limits.Loss, tt.wantLoss)
			}
			if !closeTo(got.Limits.Profit, tt.wantProfit) {
				t.Errorf("profit = %v, want %v", got.Limits.Profit, tt.wantProfit)
			}
		})
	}
}

// Корзина движется только вперёд: fresh → stale → old
func TestBracketMonotonicity(t *testing.T) {
	cfg := &testConfig(false).Trading
	created := time.Date(2023, 11, 14, 12, 0, 0, 0, time.UTC)
	pos := agingPosition(created)

	order := map[string]int{bracketFresh: 0, bracketStale: 1, bracketOld: 2}
	last := -1
	for age := time.Duration(0); age <= 3*time.Hour; age += 5 * time.Minute {
		got := agedLimits(cfg, pos, created.Add(age))
		if order[got.Bracket] < last {
			t.Fatalf("bracket regressed to %q at age %v", got.Bracket, age)
		}
		last = order[got.Bracket]
	}
}

// Warning и secure замораживают уже подтянутые лимиты
func TestAgedLimitsSuppressedByFlags(t *testing.T) {
	cfg := &testConfig(false).Trading
	now := time.Date(2023, 11, 14, 12, 0, 0, 0, time.UTC)

	for _, flag := range []string{"warning", "secure"} {
		t.Run(flag, func(t *testing.T) {
			pos := agingPosition(now.Add(-2 * time.Hour))
			pos.Limits = models.Limits{Loss: 0.0518, Profit: 0.0524}
			if flag == "warning" {
				pos.Meta.Warning = true
			} else {
				pos.Meta.Secure = true
			}

			got := agedLimits(cfg, pos, now)
			if got.Limits != pos.Limits {
				t.Errorf("limits = %+v, want stored %+v unchanged", got.Limits, pos.Limits)
			}
		})
	}
}
