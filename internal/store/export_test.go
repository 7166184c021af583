package store

import "testing"

func TestExportSingleConversation(t *testing.T) {
	s := testStore(t)
	const t0 = int64(1_700_000_000_000)
	mustStore(t, s, textMessage("C@s", "m1", t0, "first"))
	mustStore(t, s, textMessage("C@s", "m2", t0+1000, "second"))

	groups, err := s.ExportMessages(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	if groups[0].ConversationID != "C@s" {
		t.Errorf("conversation = %q, want C@s", groups[0].ConversationID)
	}
	if got := ids(groups[0].Messages); !equalIDs(got, "m1", "m2") {
		t.Errorf("messages = %v, want [m1 m2]", got)
	}
}

func TestExportGroupsByFirstAppearance(t *testing.T) {
	s := testStore(t)

	// Ingestion order differs from timestamp order on purpose.
	mustStore(t, s, textMessage("a@s", "a2", 500, "x"))
	mustStore(t, s, textMessage("c@s", "c1", 300, "x"))
	mustStore(t, s, textMessage("b@s", "b1", 200, "x"))
	mustStore(t, s, textMessage("a@s", "a1", 100, "x"))
	mustStore(t, s, textMessage("b@s", "b2", 400, "x"))

	groups, err := s.ExportMessages(Filter{})
	if err != nil {
		t.Fatal(err)
	}

	want := []struct {
		conv string
		msgs []string
	}{
		{"a@s", []string{"a1", "a2"}},
		{"b@s", []string{"b1", "b2"}},
		{"c@s", []string{"c1"}},
	}
	if len(groups) != len(want) {
		t.Fatalf("got %d groups, want %d", len(groups), len(want))
	}
	for i, w := range want {
		if groups[i].ConversationID != w.conv {
			t.Errorf("group %d = %q, want %q", i, groups[i].ConversationID, w.conv)
		}
		if got := ids(groups[i].Messages); !equalIDs(got, w.msgs...) {
			t.Errorf("group %s messages = %v, want %v", w.conv, got, w.msgs)
		}
		for j := 1; j < len(groups[i].Messages); j++ {
			if groups[i].Messages[j-1].Timestamp >= groups[i].Messages[j].Timestamp {
				t.Errorf("group %s not strictly ascending at %d", w.conv, j)
			}
		}
	}
}

func TestExportCarriesConversationMetadata(t *testing.T) {
	s := testStore(t)

	in := textMessage("grp@g.us", "g1", 100, "x")
	in.ChatType = ChatGroup
	in.DisplayName = str("Climbing")
	mustStore(t, s, in)
	mustStore(t, s, textMessage("dm@s", "d1", 200, "x"))

	groups, err := s.ExportMessages(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if groups[0].ChatType != ChatGroup || groups[0].DisplayName == nil || *groups[0].DisplayName != "Climbing" {
		t.Errorf("group metadata = %s/%v", groups[0].ChatType, groups[0].DisplayName)
	}
	if groups[1].ChatType != ChatDirect || groups[1].DisplayName != nil {
		t.Errorf("direct metadata = %s/%v", groups[1].ChatType, groups[1].DisplayName)
	}
}

func TestExportDefaultsForMissingConversation(t *testing.T) {
	s := testStore(t)
	in := textMessage("gone@g.us", "m1", 100, "x")
	in.ChatType = ChatGroup
	in.DisplayName = str("Gone")
	mustStore(t, s, in)
	if _, err := s.db.Exec(`DELETE FROM conversations`); err != nil {
		t.Fatal(err)
	}

	groups, err := s.ExportMessages(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	if groups[0].ChatType != ChatDirect || groups[0].DisplayName != nil {
		t.Errorf("orphan metadata = %s/%v, want direct/nil", groups[0].ChatType, groups[0].DisplayName)
	}
}

func TestExportAppliesFilter(t *testing.T) {
	s := testStore(t)
	seedDays(t, s)

	groups, err := s.ExportMessages(Filter{From: "2025-01-12", Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	// d12 (b) then d14 (a).
	if len(groups) != 2 || groups[0].ConversationID != "b@s" || groups[1].ConversationID != "a@s" {
		t.Fatalf("groups = %+v", groups)
	}
}

func TestExportEmpty(t *testing.T) {
	s := testStore(t)
	groups, err := s.ExportMessages(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 0 {
		t.Errorf("got %d groups, want 0", len(groups))
	}
}
