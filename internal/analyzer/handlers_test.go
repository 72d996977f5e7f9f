// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/excubitor/internal/events"
	"github.com/tomtom215/excubitor/internal/models"
)

func TestHandleDiscoveredQueuesHighRisk(t *testing.T) {
	fx := newFixture(t, 2000)
	v := storedVideo("vid-hr", 85, models.StateDiscovered)
	fx.videos.add(v)

	if err := fx.analyzer.HandleDiscovered(discoveredMsg(t, v)); err != nil {
		t.Fatalf("HandleDiscovered: %v", err)
	}

	stored := fx.videos.get("vid-hr")
	if stored.State != models.StateQueued {
		t.Errorf("State = %s, want %s", stored.State, models.StateQueued)
	}
	published := fx.publisher.published()
	if len(published) != 1 {
		t.Fatalf("published %d events, want 1", len(published))
	}
	evt, ok := published[0].(*events.VideoHighRisk)
	if !ok {
		t.Fatalf("published %T, want *events.VideoHighRisk", published[0])
	}
	if evt.Reason != events.ReasonInitial {
		t.Errorf("Reason = %q, want %q", evt.Reason, events.ReasonInitial)
	}
	if evt.CurrentRisk != 85 {
		t.Errorf("CurrentRisk = %d, want 85", evt.CurrentRisk)
	}
	if evt.RiskUpdateSeq != 0 {
		t.Errorf("RiskUpdateSeq = %d, want 0", evt.RiskUpdateSeq)
	}

	// A redelivery finds the video already queued and is acknowledged
	// without a second announcement.
	if err := fx.analyzer.HandleDiscovered(discoveredMsg(t, v)); err != nil {
		t.Fatalf("HandleDiscovered redelivery: %v", err)
	}
	if got := len(fx.publisher.published()); got != 1 {
		t.Errorf("published %d events after redelivery, want 1", got)
	}
}

func TestHandleDiscoveredBelowThreshold(t *testing.T) {
	fx := newFixture(t, 2000)
	v := storedVideo("vid-low", 45, models.StateDiscovered)
	fx.videos.add(v)

	if err := fx.analyzer.HandleDiscovered(discoveredMsg(t, v)); err != nil {
		t.Fatalf("HandleDiscovered: %v", err)
	}

	if got := fx.videos.get("vid-low").State; got != models.StateDiscovered {
		t.Errorf("State = %s, want %s", got, models.StateDiscovered)
	}
	if got := len(fx.publisher.published()); got != 0 {
		t.Errorf("published %d events, want 0", got)
	}
}

func TestHandleDiscoveredMissingVideo(t *testing.T) {
	fx := newFixture(t, 2000)
	v := storedVideo("vid-gone", 85, models.StateDiscovered)

	// Never added to the store: the row was retired between the publish
	// and this delivery. Retrying cannot help, so the message is acked.
	if err := fx.analyzer.HandleDiscovered(discoveredMsg(t, v)); err != nil {
		t.Fatalf("HandleDiscovered: %v", err)
	}
	if got := len(fx.publisher.published()); got != 0 {
		t.Errorf("published %d events, want 0", got)
	}
}

func TestHandleDiscoveredMalformedPayload(t *testing.T) {
	fx := newFixture(t, 2000)
	if err := fx.analyzer.HandleDiscovered(message.NewMessage("bad", []byte("{"))); err == nil {
		t.Error("HandleDiscovered accepted a malformed payload")
	}
}

func TestPublishHighRiskDedup(t *testing.T) {
	fx := newFixture(t, 2000)
	ctx := context.Background()

	v := storedVideo("vid-dup", 90, models.StateQueued)
	fx.analyzer.publishHighRisk(ctx, v, events.ReasonInitial, "initial")
	fx.analyzer.publishHighRisk(ctx, v, events.ReasonInitial, "initial")
	if got := len(fx.publisher.published()); got != 1 {
		t.Errorf("published %d events, want 1", got)
	}

	// A failed publish disarms the suppression window so the next
	// attempt for the same decision goes through.
	other := storedVideo("vid-retry", 90, models.StateQueued)
	fx.publisher.fail(errors.New("nats unavailable"))
	fx.analyzer.publishHighRisk(ctx, other, events.ReasonInitial, "initial")
	fx.publisher.fail(nil)
	fx.analyzer.publishHighRisk(ctx, other, events.ReasonInitial, "initial")

	published := fx.publisher.published()
	if len(published) != 2 {
		t.Fatalf("published %d events, want 2", len(published))
	}
	if got := published[1].MessageID(); got != "vid-retry:0" {
		t.Errorf("MessageID = %q, want %q", got, "vid-retry:0")
	}
}

func TestHandleFeedbackAcknowledged(t *testing.T) {
	fx := newFixture(t, 2000)
	fx.videos.add(storedVideo("vid-ack", 75, models.StateQueued))

	msg := feedbackMsg(t, &events.VisionFeedback{
		VideoID:    "vid-ack",
		ChannelID:  "UCnova",
		AnalyzedAt: testNow,
		Status:     events.FeedbackAcknowledged,
	})
	if err := fx.analyzer.HandleFeedback(msg); err != nil {
		t.Fatalf("HandleFeedback: %v", err)
	}

	stored := fx.videos.get("vid-ack")
	if stored.State != models.StateProcessing {
		t.Errorf("State = %s, want %s", stored.State, models.StateProcessing)
	}
	if stored.RiskUpdateSeq != 0 {
		t.Errorf("RiskUpdateSeq = %d, want 0", stored.RiskUpdateSeq)
	}
	if got := len(fx.channels.markedCalls()); got != 0 {
		t.Errorf("MarkScanned called %d times, want 0", got)
	}
}

func TestHandleFeedbackCompletedInfringing(t *testing.T) {
	fx := newFixture(t, 2000)
	fx.videos.add(storedVideo("vid-done", 60, models.StateProcessing))

	msg := feedbackMsg(t, &events.VisionFeedback{
		VideoID:              "vid-done",
		ChannelID:            "UCnova",
		ContainsInfringement: true,
		Confidence:           0.92,
		Characters:           []string{"Captain Nova"},
		AnalyzedAt:           testNow,
		Status:               events.FeedbackCompleted,
	})
	if err := fx.analyzer.HandleFeedback(msg); err != nil {
		t.Fatalf("HandleFeedback: %v", err)
	}

	stored := fx.videos.get("vid-done")
	if stored.GeminiResult == nil {
		t.Fatal("GeminiResult not stored")
	}
	if !stored.GeminiResult.ContainsInfringement || stored.GeminiResult.Confidence != 0.92 {
		t.Errorf("GeminiResult = %+v, want infringing at 0.92", stored.GeminiResult)
	}

	// The confirmed verdict adds twenty points: 60 -> 80 crosses the
	// threshold, so the video re-enters the queue and is announced.
	if stored.CurrentRisk != 80 {
		t.Errorf("CurrentRisk = %d, want 80", stored.CurrentRisk)
	}
	if stored.State != models.StateQueued {
		t.Errorf("State = %s, want %s", stored.State, models.StateQueued)
	}
	if stored.RiskUpdateSeq != 1 {
		t.Errorf("RiskUpdateSeq = %d, want 1", stored.RiskUpdateSeq)
	}
	if want := testNow.Add(24 * time.Hour); !stored.NextScanAt.Equal(want) {
		t.Errorf("NextScanAt = %v, want %v", stored.NextScanAt, want)
	}
	last := stored.RiskHistory[len(stored.RiskHistory)-1]
	if last.Reason != "feedback" || last.Previous != 60 || last.New != 80 {
		t.Errorf("history entry = %+v, want feedback 60 -> 80", last)
	}

	marked := fx.channels.markedCalls()
	if len(marked) != 1 || marked[0].channelID != "UCnova" || !marked[0].infringement {
		t.Errorf("marked = %+v, want one infringing scan for UCnova", marked)
	}

	published := fx.publisher.published()
	if len(published) != 1 {
		t.Fatalf("published %d events, want 1", len(published))
	}
	evt, ok := published[0].(*events.VideoHighRisk)
	if !ok {
		t.Fatalf("published %T, want *events.VideoHighRisk", published[0])
	}
	if evt.Reason != events.ReasonThresholdCross {
		t.Errorf("Reason = %q, want %q", evt.Reason, events.ReasonThresholdCross)
	}
	if evt.RiskUpdateSeq != 1 {
		t.Errorf("RiskUpdateSeq = %d, want 1", evt.RiskUpdateSeq)
	}

	// Feedback-driven rescores run on stored counts; the rescan ledger
	// is never charged.
	if got := fx.rescan.Remaining(); got != 2000 {
		t.Errorf("rescan Remaining = %d, want 2000", got)
	}
}

func TestHandleFeedbackCleanVerdict(t *testing.T) {
	fx := newFixture(t, 2000)
	fx.videos.add(storedVideo("vid-clean", 75, models.StateQueued))

	// No explicit status: completed is the default.
	msg := feedbackMsg(t, &events.VisionFeedback{
		VideoID:    "vid-clean",
		ChannelID:  "UCnova",
		Confidence: 0.88,
		AnalyzedAt: testNow,
	})
	if err := fx.analyzer.HandleFeedback(msg); err != nil {
		t.Fatalf("HandleFeedback: %v", err)
	}

	stored := fx.videos.get("vid-clean")
	if stored.State != models.StateAnalyzed {
		t.Errorf("State = %s, want %s", stored.State, models.StateAnalyzed)
	}
	if stored.CurrentRisk != 65 {
		t.Errorf("CurrentRisk = %d, want 65", stored.CurrentRisk)
	}
	if stored.RiskTier != models.RiskTierMedium {
		t.Errorf("RiskTier = %s, want %s", stored.RiskTier, models.RiskTierMedium)
	}
	if stored.RiskUpdateSeq != 1 {
		t.Errorf("RiskUpdateSeq = %d, want 1", stored.RiskUpdateSeq)
	}

	marked := fx.channels.markedCalls()
	if len(marked) != 1 || marked[0].channelID != "UCnova" || marked[0].infringement {
		t.Errorf("marked = %+v, want one clean scan for UCnova", marked)
	}
	if got := len(fx.publisher.published()); got != 0 {
		t.Errorf("published %d events, want 0", got)
	}
}

func TestHandleFeedbackFailed(t *testing.T) {
	fx := newFixture(t, 2000)
	fx.videos.add(storedVideo("vid-fail", 60, models.StateProcessing))

	msg := feedbackMsg(t, &events.VisionFeedback{
		VideoID:    "vid-fail",
		ChannelID:  "UCnova",
		AnalyzedAt: testNow,
		Status:     events.FeedbackFailed,
	})
	if err := fx.analyzer.HandleFeedback(msg); err != nil {
		t.Fatalf("HandleFeedback: %v", err)
	}

	stored := fx.videos.get("vid-fail")
	if stored.State != models.StateFailed {
		t.Errorf("State = %s, want %s", stored.State, models.StateFailed)
	}
	if stored.GeminiResult != nil {
		t.Errorf("GeminiResult = %+v, want nil", stored.GeminiResult)
	}
	if stored.CurrentRisk != 60 {
		t.Errorf("CurrentRisk = %d, want 60", stored.CurrentRisk)
	}
	if stored.RiskUpdateSeq != 1 {
		t.Errorf("RiskUpdateSeq = %d, want 1", stored.RiskUpdateSeq)
	}
	if want := testNow.Add(3 * 24 * time.Hour); !stored.NextScanAt.Equal(want) {
		t.Errorf("NextScanAt = %v, want %v", stored.NextScanAt, want)
	}
	if got := len(fx.channels.markedCalls()); got != 0 {
		t.Errorf("MarkScanned called %d times, want 0", got)
	}
	if got := len(fx.publisher.published()); got != 0 {
		t.Errorf("published %d events, want 0", got)
	}
}

func TestHandleFeedbackStale(t *testing.T) {
	fx := newFixture(t, 2000)
	v := storedVideo("vid-stale", 60, models.StateAnalyzed)
	v.GeminiResult = &models.GeminiResult{Confidence: 0.55, AnalyzedAt: testNow.Add(-time.Hour)}
	fx.videos.add(v)

	// Duplicate terminal feedback: analyzed has no edge back to
	// analyzed, so the verdict must stay untouched.
	msg := feedbackMsg(t, &events.VisionFeedback{
		VideoID:              "vid-stale",
		ChannelID:            "UCnova",
		ContainsInfringement: true,
		Confidence:           0.99,
		AnalyzedAt:           testNow,
	})
	if err := fx.analyzer.HandleFeedback(msg); err != nil {
		t.Fatalf("HandleFeedback: %v", err)
	}

	stored := fx.videos.get("vid-stale")
	if stored.GeminiResult.Confidence != 0.55 {
		t.Errorf("GeminiResult.Confidence = %v, want 0.55", stored.GeminiResult.Confidence)
	}
	if stored.RiskUpdateSeq != 0 {
		t.Errorf("RiskUpdateSeq = %d, want 0", stored.RiskUpdateSeq)
	}
	if got := len(fx.channels.markedCalls()); got != 0 {
		t.Errorf("MarkScanned called %d times, want 0", got)
	}
}

func TestHandleFeedbackUnknownVideo(t *testing.T) {
	fx := newFixture(t, 2000)

	msg := feedbackMsg(t, &events.VisionFeedback{
		VideoID:    "vid-unknown",
		ChannelID:  "UCnova",
		Confidence: 0.80,
		AnalyzedAt: testNow,
	})
	if err := fx.analyzer.HandleFeedback(msg); err != nil {
		t.Fatalf("HandleFeedback: %v", err)
	}
	if got := len(fx.publisher.published()); got != 0 {
		t.Errorf("published %d events, want 0", got)
	}
}

func TestHandleFeedbackMalformedPayload(t *testing.T) {
	fx := newFixture(t, 2000)
	if err := fx.analyzer.HandleFeedback(message.NewMessage("bad", []byte("not json"))); err == nil {
		t.Error("HandleFeedback accepted a malformed payload")
	}
}
