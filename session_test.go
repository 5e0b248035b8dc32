package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRoomManagerCreateAndList(t *testing.T) {
	rm := NewRoomManager(testArenaConfig(), 2, nil)
	defer rm.Close()

	a, err := rm.CreateRoom("first", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !uuidRegex.MatchString(a.ID) {
		t.Errorf("room id should be a uuid, got %s", a.ID)
	}
	time.Sleep(time.Millisecond)
	b, _ := rm.CreateRoom("second", "hash")

	if _, err := rm.CreateRoom("third", ""); !errors.Is(err, ErrTooManyRooms) {
		t.Errorf("expected too many rooms, got %v", err)
	}

	list := rm.ListRooms()
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Fatalf("expected rooms oldest first, got %+v", list)
	}
	if list[0].Password || !list[1].Password {
		t.Error("password flag should reflect the hash")
	}
	if list[0].Phase != string(PhaseLobby) {
		t.Errorf("new rooms wait in the lobby, got %s", list[0].Phase)
	}
	if rm.GetRoom(a.ID) != a || rm.GetRoom("nope") != nil {
		t.Error("lookup mismatch")
	}
}

func TestRoomManagerTearsDownEmptyRoom(t *testing.T) {
	db := openTestDB(t)
	j := NewJournal(db)
	defer j.Stop()
	rm := NewRoomManager(testArenaConfig(), 10, j)
	defer rm.Close()

	room, _ := rm.CreateRoom("room", "")
	a, _ := room.Game.AddPlayer("A")
	b, _ := room.Game.AddPlayer("B")
	ma, mb := &mockBroadcaster{}, &mockBroadcaster{}
	room.Game.SetClient(a.ID, ma, CodecJSON)
	room.Game.SetClient(b.ID, mb, CodecJSON)
	j.Record(testResult(room.ID, 0, a.ID))

	rm.Disconnect(room.ID, a.ID, ma)
	if rm.GetRoom(room.ID) == nil {
		t.Fatal("room with a connected human should survive")
	}
	rm.Disconnect(room.ID, b.ID, mb)
	if rm.GetRoom(room.ID) != nil {
		t.Fatal("room without connected humans should be removed")
	}
	if rm.Count() != 0 {
		t.Errorf("expected 0 rooms, got %d", rm.Count())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rows, err := j.Results(ctx, room.ID, 10)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("teardown should forget the room's results, got %d", len(rows))
	}
}

func TestRoomManagerFaultRemovesRoom(t *testing.T) {
	rm := NewRoomManager(testArenaConfig(), 10, nil)
	defer rm.Close()
	healthy, _ := rm.CreateRoom("healthy", "")
	broken, _ := rm.CreateRoom("broken", "")

	m := &mockBroadcaster{}
	a, _ := broken.Game.AddPlayer("A")
	broken.Game.SetClient(a.ID, m, CodecJSON)
	broken.Game.mu.Lock()
	broken.Game.phase = PhaseRunning
	broken.Game.hazards = nil
	broken.Game.mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	for rm.GetRoom(broken.ID) != nil {
		if time.Now().After(deadline) {
			t.Fatal("faulted room was not removed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if rm.GetRoom(healthy.ID) == nil {
		t.Error("one room's fault must not affect another")
	}
	if m.count(MsgError) == 0 {
		t.Error("clients of the faulted room should get an error")
	}
}
