package fraud

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/fraudscore/internal/features"
	"github.com/richxcame/fraudscore/internal/model"
	"github.com/richxcame/fraudscore/pkg/config"
)

func defaultReasonConfig() config.ReasonConfig {
	return config.ReasonConfig{CriticalBoost: 0.15, HighPairBoost: 0.05, RecipientDiscount: 0.3}
}

func generate(t *testing.T, mutate func(*features.Vector), er EnsembleResult) ([]FraudReason, float64) {
	t.Helper()
	var v features.Vector
	if mutate != nil {
		mutate(&v)
	}
	return NewReasonGenerator(defaultReasonConfig()).Generate(v, er)
}

func severities(reasons []FraudReason) []Severity {
	out := make([]Severity, len(reasons))
	for i, r := range reasons {
		out[i] = r.Severity
	}
	return out
}

func TestGenerate_CleanVectorFallsBackToNormalProfile(t *testing.T) {
	reasons, composite := generate(t, nil, EnsembleResult{WeightedScore: 0.02})

	require.Len(t, reasons, 1)
	assert.Equal(t, SeverityLow, reasons[0].Severity)
	assert.Equal(t, "Transaction matches the user's normal profile", reasons[0].Text)
	assert.InDelta(t, 0.02, composite, 1e-9)
}

func TestGenerate_AmountMagnitude(t *testing.T) {
	tests := []struct {
		amount float64
		want   Severity
	}{
		{25000, SeverityCritical},
		{10000, SeverityHigh},
		{5000, SeverityMedium},
	}
	for _, tt := range tests {
		reasons, _ := generate(t, func(v *features.Vector) {
			v[features.IdxAmount] = tt.amount
		}, EnsembleResult{})
		require.NotEmpty(t, reasons)
		assert.Equal(t, tt.want, reasons[0].Severity, "amount %v", tt.amount)
		assert.Equal(t, "amount", reasons[0].SourceFeature)
		assert.Equal(t, tt.amount, reasons[0].SourceValue)
	}
}

func TestGenerate_AmountBelowMediumThresholdIsSilent(t *testing.T) {
	reasons, _ := generate(t, func(v *features.Vector) {
		v[features.IdxAmount] = 4999
	}, EnsembleResult{})
	require.Len(t, reasons, 1)
	assert.Equal(t, SeverityLow, reasons[0].Severity)
}

func TestGenerate_AmountDeviation(t *testing.T) {
	reasons, _ := generate(t, func(v *features.Vector) {
		v[features.IdxAmountDeviation] = 4.5
	}, EnsembleResult{})
	assert.Contains(t, severities(reasons), SeverityHigh)

	reasons, _ = generate(t, func(v *features.Vector) {
		v[features.IdxAmountDeviation] = 3
	}, EnsembleResult{})
	assert.Contains(t, severities(reasons), SeverityMedium)
}

func TestGenerate_Novelty(t *testing.T) {
	reasons, _ := generate(t, func(v *features.Vector) {
		v[features.IdxIsNewDevice] = 1
		v[features.IdxIsNewRecipient] = 1
	}, EnsembleResult{})

	texts := make([]string, len(reasons))
	for i, r := range reasons {
		texts[i] = r.Text
	}
	assert.Contains(t, texts, "Transaction from a new or unrecognized device")
	assert.Contains(t, texts, "First transaction to this recipient")
}

func TestGenerate_Velocity(t *testing.T) {
	reasons, _ := generate(t, func(v *features.Vector) {
		v[features.IdxTxCount1Min] = 3
		v[features.IdxTxCount5Min] = 5
		v[features.IdxTxCount1H] = 8
		v[features.IdxTxCount6H] = 20
	}, EnsembleResult{})

	sevs := severities(reasons)
	assert.Contains(t, sevs, SeverityCritical) // rapid-fire within a minute
	assert.Contains(t, sevs, SeverityHigh)
	assert.Contains(t, sevs, SeverityMedium)
	require.Len(t, reasons, 4)
}

func TestGenerate_VelocityHourlyBandsAreExclusive(t *testing.T) {
	reasons, _ := generate(t, func(v *features.Vector) {
		v[features.IdxTxCount1H] = 9
	}, EnsembleResult{})

	// The hourly burst reason must not also emit the elevated-velocity one.
	require.Len(t, reasons, 1)
	assert.Equal(t, SeverityHigh, reasons[0].Severity)
}

func TestGenerate_Temporal(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*features.Vector)
		want   Severity
	}{
		{"large night transaction", func(v *features.Vector) {
			v[features.IdxIsNight] = 1
			v[features.IdxAmount] = 12000
		}, SeverityHigh},
		{"night weekend", func(v *features.Vector) {
			v[features.IdxIsNight] = 1
			v[features.IdxIsWeekend] = 1
		}, SeverityMedium},
		{"plain night", func(v *features.Vector) {
			v[features.IdxIsNight] = 1
		}, SeverityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reasons, _ := generate(t, tt.mutate, EnsembleResult{})
			var found bool
			for _, r := range reasons {
				if r.SourceFeature == "is_night" {
					found = true
					assert.Equal(t, tt.want, r.Severity)
				}
			}
			assert.True(t, found)
		})
	}
}

func TestGenerate_MerchantRisk(t *testing.T) {
	reasons, _ := generate(t, func(v *features.Vector) {
		v[features.IdxMerchantRiskScore] = 0.8
	}, EnsembleResult{})
	assert.Contains(t, severities(reasons), SeverityHigh)

	reasons, _ = generate(t, func(v *features.Vector) {
		v[features.IdxMerchantRiskScore] = 0.5
	}, EnsembleResult{})
	assert.Contains(t, severities(reasons), SeverityMedium)
}

func TestGenerate_ChannelAndType(t *testing.T) {
	reasons, _ := generate(t, func(v *features.Vector) {
		v[features.IdxIsQRChannel] = 1
		v[features.IdxIsP2M] = 1
		v[features.IdxAmount] = 11000
	}, EnsembleResult{})

	texts := make([]string, len(reasons))
	for i, r := range reasons {
		texts[i] = r.Text
	}
	assert.Contains(t, texts, "QR-initiated transaction")
	assert.Contains(t, texts, "Large merchant payment")
}

func TestGenerate_ModelConsensus(t *testing.T) {
	er := EnsembleResult{
		WeightedScore: 0.75,
		ModelScores: []ModelScore{
			{Name: model.NameRandomForest, Score: 0.8},
			{Name: model.NameGradientBoost, Score: 0.72},
			{Name: model.NameAnomalyDetector, Score: 0.3},
		},
	}
	reasons, _ := generate(t, nil, er)

	var found bool
	for _, r := range reasons {
		if r.Severity == SeverityCritical {
			found = true
			assert.Equal(t, "2 models agree on high fraud likelihood", r.Text)
		}
	}
	assert.True(t, found)
}

func TestGenerate_AnomalyDetectorFlag(t *testing.T) {
	er := EnsembleResult{
		WeightedScore: 0.4,
		ModelScores: []ModelScore{
			{Name: model.NameAnomalyDetector, Score: 0.9},
		},
	}
	reasons, _ := generate(t, nil, er)

	texts := make([]string, len(reasons))
	for i, r := range reasons {
		texts[i] = r.Text
	}
	assert.Contains(t, texts, "Anomaly detector flags this transaction as highly unusual")
}

func TestComposite_SeverityBoosts(t *testing.T) {
	g := NewReasonGenerator(defaultReasonConfig())

	tests := []struct {
		name    string
		reasons []FraudReason
		want    float64
	}{
		{"no escalation", []FraudReason{{Severity: SeverityLow}}, 0.2},
		{"one critical", []FraudReason{{Severity: SeverityCritical}}, 0.35},
		{"single high does not boost", []FraudReason{{Severity: SeverityHigh}}, 0.2},
		{"pair of highs", []FraudReason{{Severity: SeverityHigh}, {Severity: SeverityHigh}}, 0.25},
		{"three highs still one pair", []FraudReason{
			{Severity: SeverityHigh}, {Severity: SeverityHigh}, {Severity: SeverityHigh},
		}, 0.25},
		{"critical plus pair", []FraudReason{
			{Severity: SeverityCritical}, {Severity: SeverityHigh}, {Severity: SeverityHigh},
		}, 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, g.composite(0.2, tt.reasons), 1e-9)
		})
	}
}

func TestComposite_ClampsToOne(t *testing.T) {
	g := NewReasonGenerator(defaultReasonConfig())
	reasons := []FraudReason{
		{Severity: SeverityCritical},
		{Severity: SeverityCritical},
		{Severity: SeverityCritical},
	}
	assert.Equal(t, 1.0, g.composite(0.9, reasons))
}
