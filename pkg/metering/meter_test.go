package metering

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"concordlabs/concord/pkg/config"
	"concordlabs/concord/pkg/message"
)

func testMeterConfig() config.MeteringConfig {
	return config.MeteringConfig{QueueSize: 64}
}

func stopMeter(t *testing.T, m *Meter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestMeterAggregates(t *testing.T) {
	m, err := NewMeter(testMeterConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}

	m.OnValidation("acme", "valid")
	m.OnValidation("acme", "valid")
	m.OnValidation("acme", "invalid")
	m.OnProcessed("acme", message.TypeQuery, message.StatusDelivered, 10*time.Millisecond)
	m.OnProcessed("acme", message.TypeCommand, message.StatusFailed, 5*time.Millisecond)
	m.OnProcessed("rival", message.TypeQuery, message.StatusDelivered, time.Millisecond)

	stopMeter(t, m)

	acme := m.Totals("acme")
	if acme.Messages != 2 {
		t.Fatalf("acme messages = %d, want 2", acme.Messages)
	}
	if acme.Validations["valid"] != 2 || acme.Validations["invalid"] != 1 {
		t.Fatalf("acme validations = %v", acme.Validations)
	}
	if acme.Processed["DELIVERED"] != 1 || acme.Processed["FAILED"] != 1 {
		t.Fatalf("acme processed = %v", acme.Processed)
	}
	if acme.ByType["QUERY"] != 1 || acme.ByType["COMMAND"] != 1 {
		t.Fatalf("acme by_type = %v", acme.ByType)
	}
	if acme.ProcessingMS != 15 {
		t.Fatalf("acme processing_ms = %d, want 15", acme.ProcessingMS)
	}

	rival := m.Totals("rival")
	if rival.Messages != 1 {
		t.Fatalf("rival messages = %d, want 1 (tenant isolation)", rival.Messages)
	}
}

func TestMeterUnknownTenantIsZero(t *testing.T) {
	m, err := NewMeter(testMeterConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer stopMeter(t, m)

	if totals := m.Totals("nobody"); totals.Messages != 0 {
		t.Fatalf("unknown tenant totals = %+v", totals)
	}
}

func TestMeterDisabledRecordsNothing(t *testing.T) {
	cfg := testMeterConfig()
	off := false
	cfg.Enabled = &off

	m, err := NewMeter(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	m.OnProcessed("acme", message.TypeQuery, message.StatusDelivered, time.Millisecond)
	stopMeter(t, m)

	if totals := m.Totals("acme"); totals.Messages != 0 {
		t.Fatalf("disabled meter recorded %+v", totals)
	}
}

func TestMeterIgnoresAfterStop(t *testing.T) {
	m, err := NewMeter(testMeterConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	stopMeter(t, m)

	m.OnProcessed("acme", message.TypeQuery, message.StatusDelivered, time.Millisecond)
	if totals := m.Totals("acme"); totals.Messages != 0 {
		t.Fatal("event recorded after stop")
	}
}

func TestLedgerPersistsAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.db")
	cfg := testMeterConfig()
	cfg.LedgerPath = path

	m, err := NewMeter(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	m.OnProcessed("acme", message.TypeQuery, message.StatusDelivered, 10*time.Millisecond)
	m.OnValidation("acme", "valid")
	stopMeter(t, m)

	reopened, err := NewMeter(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer stopMeter(t, reopened)

	totals := reopened.Totals("acme")
	if totals.Messages != 1 {
		t.Fatalf("reloaded messages = %d, want 1", totals.Messages)
	}
	if totals.Validations["valid"] != 1 {
		t.Fatalf("reloaded validations = %v", totals.Validations)
	}
}

func TestLedgerRoundTrip(t *testing.T) {
	l, err := OpenLedger(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	ctx := context.Background()

	in := newTotals()
	in.Messages = 7
	in.Processed["DELIVERED"] = 7
	if err := l.Save(ctx, "acme", in); err != nil {
		t.Fatal(err)
	}

	// Upsert replaces, not duplicates.
	in.Messages = 8
	if err := l.Save(ctx, "acme", in); err != nil {
		t.Fatal(err)
	}

	loaded, err := l.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 || loaded["acme"].Messages != 8 {
		t.Fatalf("loaded = %+v", loaded)
	}
}
