package main

import (
	"path/filepath"
	"testing"

	"github.com/avtotest/chekbot/internal/store"
)

func testFlags(transport, dbDSN string) Flags {
	stateDir := ""
	telegramToken := ""
	openaiKey := ""
	webhookAddr := DefaultWebhookAddr
	qrOutput := ""
	numeric := false
	return Flags{
		transport:     &transport,
		stateDir:      &stateDir,
		dbDSN:         &dbDSN,
		telegramToken: &telegramToken,
		openaiKey:     &openaiKey,
		webhookAddr:   &webhookAddr,
		qrOutput:      &qrOutput,
		numeric:       &numeric,
	}
}

func TestBuildStoreInMemory(t *testing.T) {
	s, err := buildStore(testFlags("telegram", ""))
	if err != nil {
		t.Fatalf("buildStore failed: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*store.InMemoryStore); !ok {
		t.Errorf("expected in-memory store for empty DSN, got %T", s)
	}
}

func TestBuildStoreSQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "chekbot.db")
	s, err := buildStore(testFlags("telegram", dsn))
	if err != nil {
		t.Fatalf("buildStore failed: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*store.SQLiteStore); !ok {
		t.Errorf("expected SQLite store for file DSN, got %T", s)
	}
}

func TestBuildMarkersEnvOverride(t *testing.T) {
	t.Setenv("CHEKBOT_PRICE_MARKERS", "cost, how much")
	t.Setenv("CHEKBOT_PAYMENT_MARKERS", "")
	t.Setenv("CHEKBOT_PROOF_MARKERS", "1234,ACME")

	markers := buildMarkers()
	if len(markers.PriceInquiry) != 2 || markers.PriceInquiry[0] != "cost" {
		t.Errorf("unexpected price markers: %v", markers.PriceInquiry)
	}
	if len(markers.PaymentIntent) == 0 {
		t.Error("unset payment markers must keep the defaults")
	}

	proof := buildProofMarkers()
	if len(proof) != 2 || proof[0] != "1234" || proof[1] != "ACME" {
		t.Errorf("unexpected proof markers: %v", proof)
	}
}

func TestBuildTransportUnknown(t *testing.T) {
	if _, _, err := buildTransport(testFlags("carrier-pigeon", "")); err == nil {
		t.Error("expected error for unknown transport")
	}
}

func TestBuildTransportTelegramRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	if _, _, err := buildTransport(testFlags("telegram", "")); err == nil {
		t.Error("expected error without a Telegram token")
	}
}

func TestBuildTransportTwilioWebhookServer(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "ACxxx")
	t.Setenv("TWILIO_AUTH_TOKEN", "token")
	t.Setenv("TWILIO_FROM_NUMBER", "whatsapp:+15550001111")

	svc, webhook, err := buildTransport(testFlags("twilio", ""))
	if err != nil {
		t.Fatalf("buildTransport failed: %v", err)
	}
	if svc == nil {
		t.Fatal("expected a service")
	}
	if webhook == nil {
		t.Fatal("twilio transport must come with a webhook server")
	}
	if webhook.Addr != DefaultWebhookAddr {
		t.Errorf("unexpected webhook addr %q", webhook.Addr)
	}
}
