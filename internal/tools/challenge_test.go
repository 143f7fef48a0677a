package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

func yandexProfile(t testing.TB) SiteProfile {
	p, ok := DefaultSites().Get("yandex")
	require.True(t, ok)
	return p
}

func TestChallengeHandler_Detect(t *testing.T) {
	tests := []struct {
		name string
		body string
		text string
		want bool
	}{
		{"text marker", "<p>hi</p>", "Подтвердите, что вы не робот", true},
		{"english marker", "<p>hi</p>", "Our systems have detected unusual traffic", true},
		{"challenge input", `<input name="captcha_code">`, "", true},
		{"challenge iframe", `<iframe src="https://example.com/captcha?id=1"></iframe>`, "", true},
		{"clean page", `<input name="q"><p>results</p>`, "10 results found", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := newFakeSession(t, tt.body)
			session.text = tt.text
			h := NewChallengeHandler(session, yandexProfile(t), 2, Timing{}, zap.NewNop())

			assert.Equal(t, tt.want, h.Detect(context.Background(), session))
		})
	}
}

func TestChallengeHandler_FocusesInputOrCentre(t *testing.T) {
	withInput := newFakeSession(t, `<input id="captcha" name="captcha">`)
	h := NewChallengeHandler(withInput, yandexProfile(t), 2, Timing{}, zap.NewNop())
	report := h.Handle(context.Background(), withInput, 1, "котики")

	assert.Equal(t, []string{"input#captcha", "input#captcha"}, withInput.clicks)
	assert.Empty(t, withInput.clicksAt)
	assert.Equal(t, PathChallengeFallback, report.Details()["path"])

	noInput := newFakeSession(t, `<img class="captcha" src="c.png">`)
	h = NewChallengeHandler(noInput, yandexProfile(t), 2, Timing{}, zap.NewNop())
	h.Handle(context.Background(), noInput, 1, "котики")

	assert.Equal(t, [][2]float64{{640, 360}, {640, 360}}, noInput.clicksAt)
}

func TestChallengeHandler_FallbackURL(t *testing.T) {
	session := newFakeSession(t, "")
	h := NewChallengeHandler(session, yandexProfile(t), 2, Timing{}, zap.NewNop())

	report := h.Handle(context.Background(), session, 4, "go generics")

	require.Nil(t, report.Failure)
	assert.Equal(t, "https://yandex.ru/search/?text=go+generics", report.FallbackURL)
	assert.Equal(t, []string{report.FallbackURL}, session.tabs)
	assert.Equal(t, "/artifacts/step_4_captcha_fallback.png", report.FallbackShot)
}

func TestChallengeHandler_RemediationBound(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		configured := rapid.IntRange(-5, 20).Draw(rt, "attempts")
		session := newFakeSession(t, `<div class="captcha"></div>`)
		if rapid.Bool().Draw(rt, "tabFails") {
			session.tabErr = errFake
		}
		h := NewChallengeHandler(session, yandexProfile(t), configured, Timing{}, zap.NewNop())

		report := h.Handle(context.Background(), session, 1, rapid.String().Draw(rt, "query"))

		if report.Attempts > MaxRemediationAttempts || report.Attempts < 1 {
			rt.Fatalf("remediation attempts %d outside [1, %d]", report.Attempts, MaxRemediationAttempts)
		}
		var attemptShots int
		for _, s := range session.shots {
			if strings.HasPrefix(s, "captcha_attempt_") {
				attemptShots++
			}
		}
		if attemptShots != report.Attempts {
			rt.Fatalf("took %d attempt screenshots for %d attempts", attemptShots, report.Attempts)
		}
		if len(session.tabs) != 1 {
			rt.Fatalf("fallback tab opened %d times", len(session.tabs))
		}
	})
}
