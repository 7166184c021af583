package store

import (
	"github.com/elliotchance/orderedmap/v3"
)

// ExportMessages runs QueryMessages and groups the result by conversation.
// Groups appear in the order their first message appears in the ascending
// stream; each group's messages stay in ascending order. Conversation
// metadata is looked up once per group, when the group is first seen.
func (s *Store) ExportMessages(f Filter) ([]ConversationExport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}

	msgs, err := s.queryMessages(f)
	if err != nil {
		return nil, err
	}

	groups := orderedmap.NewOrderedMap[string, *ConversationExport]()
	for _, m := range msgs {
		g, ok := groups.Get(m.ConversationJID)
		if !ok {
			g, err = s.exportGroup(m.ConversationJID)
			if err != nil {
				return nil, err
			}
			groups.Set(m.ConversationJID, g)
		}
		g.Messages = append(g.Messages, m)
	}

	out := make([]ConversationExport, 0, groups.Len())
	for g := range groups.Values() {
		out = append(out, *g)
	}
	return out, nil
}

func (s *Store) exportGroup(jid string) (*ConversationExport, error) {
	c, err := s.conversation(jid)
	if err != nil {
		return nil, s.fail("get conversation", err)
	}
	g := &ConversationExport{ConversationID: jid, ChatType: ChatDirect}
	if c != nil {
		g.ChatType = c.ChatType
		g.DisplayName = c.DisplayName
	}
	return g, nil
}
