package telegram

import (
	"testing"
	"time"

	"github.com/arielbenavi/WhaleWatcher/clients/notifier"
	"github.com/stretchr/testify/assert"
)

func sampleAlert() notifier.WhaleAlert {
	roi := 25.5
	return notifier.WhaleAlert{
		Wallet:    "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
		Category:  "ESTABLISHED",
		Flags:     []string{"HOLDING"},
		ROIPct:    &roi,
		TxID:      "abc123",
		Action:    "Sold",
		AmountBTC: -0.3,
		USDValue:  15000,
		Timestamp: time.Date(2024, 6, 10, 14, 30, 0, 0, time.UTC),
		Level:     "URGENT",
		PctChange: 17.6,
	}
}

func TestBuildAlertMessage(t *testing.T) {
	msg := BuildAlertMessage(sampleAlert())

	assert.Contains(t, msg, "<b>URGENT</b>")
	assert.Contains(t, msg, "🚨")
	assert.Contains(t, msg, "<code>1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa</code>")
	assert.Contains(t, msg, "Sold -0.3000 BTC (~$15,000)")
	assert.Contains(t, msg, "<b>17.6%</b>")
	assert.Contains(t, msg, "Category: ESTABLISHED")
	assert.Contains(t, msg, "Patterns: HOLDING")
	assert.Contains(t, msg, "Wallet ROI: +25.5%")
	assert.Contains(t, msg, "2024-06-10 14:30 UTC")
}

func TestBuildAlertMessageUndefinedROI(t *testing.T) {
	alert := sampleAlert()
	alert.ROIPct = nil
	alert.Flags = nil

	msg := BuildAlertMessage(alert)
	assert.Contains(t, msg, "Wallet ROI: n/a")
	assert.NotContains(t, msg, "Patterns:")
}

func TestBuildAlertMessageEscapesHTML(t *testing.T) {
	alert := sampleAlert()
	alert.Category = "<script>"

	msg := BuildAlertMessage(alert)
	assert.Contains(t, msg, "&lt;script&gt;")
	assert.NotContains(t, msg, "<script>")
}

func TestLevelEmoji(t *testing.T) {
	assert.Equal(t, "🚨", levelEmoji("URGENT"))
	assert.Equal(t, "⚠️", levelEmoji("HIGH"))
	assert.Equal(t, "ℹ️", levelEmoji("INFO"))
}
