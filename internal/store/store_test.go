package store

import "testing"

func TestMemory_SetAndGet(t *testing.T) {
	m := NewMemory()
	if err := m.Set("lights.desk-001.name", "Desk", &Meta{Type: "string", Role: "text"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, ok := m.Get("lights.desk-001.name")
	if !ok || v != "Desk" {
		t.Errorf("Get = %v, %v", v, ok)
	}

	entry, ok := m.GetEntry("lights.desk-001.name")
	if !ok {
		t.Fatal("GetEntry should find the key")
	}
	if entry.Meta.Role != "text" {
		t.Errorf("meta role = %q", entry.Meta.Role)
	}
	if entry.LastSynced.IsZero() {
		t.Error("Set must mark the entry synced")
	}
}

func TestMemory_MetaImmutableAfterCreate(t *testing.T) {
	m := NewMemory()
	m.Set("k", 1, &Meta{Description: "first"})
	m.Set("k", 2, &Meta{Description: "second"})

	entry, _ := m.GetEntry("k")
	if entry.Meta.Description != "first" {
		t.Errorf("meta overwritten on update: %q", entry.Meta.Description)
	}
	if entry.Value != 2 {
		t.Errorf("value not updated: %v", entry.Value)
	}
}

func TestMemory_AckDoesNotSyncOrNotify(t *testing.T) {
	m := NewMemory()
	notified := false
	m.OnExternalWrite(func(string, any) { notified = true })

	m.Subscribe("lights.desk-001.action.brightness")
	if err := m.Ack("lights.desk-001.action.brightness", 200); err != nil {
		t.Fatalf("Ack: %v", err)
	}

	if notified {
		t.Error("Ack must not notify the external write callback")
	}
	entry, _ := m.GetEntry("lights.desk-001.action.brightness")
	if !entry.LastSynced.IsZero() {
		t.Error("Ack must not mark the entry synced")
	}
	if entry.LastUpdated.IsZero() {
		t.Error("Ack must bump lastUpdated")
	}
}

func TestMemory_ExternalWriteNotifiesOnlySubscribed(t *testing.T) {
	m := NewMemory()
	var gotKey string
	var gotValue any
	m.OnExternalWrite(func(key string, value any) {
		gotKey = key
		gotValue = value
	})

	// Not subscribed: stored but silent
	m.ExternalWrite("lights.desk-001.name", "New Name")
	if gotKey != "" {
		t.Errorf("unsubscribed write must not notify, got %q", gotKey)
	}
	if v, _ := m.Get("lights.desk-001.name"); v != "New Name" {
		t.Errorf("unsubscribed write must still store the value, got %v", v)
	}

	// Subscribed: callback fires
	m.Subscribe("lights.desk-001.action.on")
	m.ExternalWrite("lights.desk-001.action.on", true)
	if gotKey != "lights.desk-001.action.on" || gotValue != true {
		t.Errorf("subscribed write notification = %q, %v", gotKey, gotValue)
	}
}

func TestMemory_ExternalWriteKeepsSyncedValue(t *testing.T) {
	m := NewMemory()
	m.Set("lights.desk-001.action.on", true, nil)
	m.Subscribe("lights.desk-001.action.on")

	m.ExternalWrite("lights.desk-001.action.on", false)

	entry, _ := m.GetEntry("lights.desk-001.action.on")
	if entry.Value != false {
		t.Errorf("external write must update the value, got %v", entry.Value)
	}
	if entry.Synced != true {
		t.Errorf("external write must not touch the synced value, got %v", entry.Synced)
	}
}

func TestMemory_AckUpdatesSyncedValue(t *testing.T) {
	m := NewMemory()
	m.Set("k", 100, nil)
	m.ExternalWrite("k", 50)
	m.Ack("k", 50)

	entry, _ := m.GetEntry("k")
	if entry.Synced != 50 {
		t.Errorf("ack must confirm the value as synced, got %v", entry.Synced)
	}
}

func TestMemory_SubscribeMarksWritable(t *testing.T) {
	m := NewMemory()
	m.Set("k", 1, &Meta{})
	m.Subscribe("k")

	if !m.Subscribed("k") {
		t.Error("key should be subscribed")
	}
	entry, _ := m.GetEntry("k")
	if !entry.Meta.Writable {
		t.Error("subscription must mark the meta writable")
	}
}

func TestMemory_Delete(t *testing.T) {
	m := NewMemory()
	m.Set("k", 1, nil)

	ok, err := m.Delete("k")
	if err != nil || !ok {
		t.Errorf("Delete existing = %v, %v", ok, err)
	}
	ok, err = m.Delete("k")
	if err != nil || ok {
		t.Errorf("Delete missing = %v, %v", ok, err)
	}
	if _, found := m.Get("k"); found {
		t.Error("deleted key should be gone")
	}
}

func TestMemory_Keys(t *testing.T) {
	m := NewMemory()
	m.Set("a", 1, nil)
	m.Set("b", 2, nil)
	m.Subscribe("c")

	keys := m.Keys()
	if len(keys) != 3 {
		t.Errorf("Keys = %v", keys)
	}
}
