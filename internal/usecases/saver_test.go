package usecases

import (
	"testing"

	"suporte-lojinha/internal/entities"
)

func TestSaverCreatesThenUpdates(t *testing.T) {
	store := newFakeConvStore()
	saver := NewConversationSaver(store)
	defer saver.Close()

	sess := newSession("ana@example.com")
	sess.Lock()
	sess.appendText("cadê o pedido R1?", entities.SenderUser)
	sess.appendText("Encontrei!", entities.SenderBot)
	saver.Enqueue(sess, false)
	sess.Unlock()
	saver.Flush()

	if sess.ConversationID == "" {
		t.Fatal("first save should create the conversation")
	}
	first := sess.ConversationID

	sess.Lock()
	sess.appendText("obrigada", entities.SenderUser)
	saver.Enqueue(sess, true)
	sess.Unlock()
	saver.Flush()

	if sess.ConversationID != first {
		t.Error("later saves must update in place, not create new rows")
	}
	row := store.get(first)
	if len(row.Messages) != 3 || !row.Resolved {
		t.Errorf("latest snapshot not applied: %d messages, resolved=%v", len(row.Messages), row.Resolved)
	}
}

func TestSaverSkipsComponentsAndAnonymous(t *testing.T) {
	store := newFakeConvStore()
	saver := NewConversationSaver(store)
	defer saver.Close()

	anon := newSession("")
	anon.Lock()
	anon.appendText("oi", entities.SenderUser)
	saver.Enqueue(anon, false)
	anon.Unlock()
	saver.Flush()
	if anon.ConversationID != "" {
		t.Error("anonymous sessions must not be persisted")
	}

	sess := newSession("ana@example.com")
	sess.Lock()
	sess.appendText("pedido R2 e R3", entities.SenderUser)
	sess.appendComponent(entities.Component{Kind: entities.ComponentOrderList})
	saver.Enqueue(sess, false)
	sess.Unlock()
	saver.Flush()

	row := store.get(sess.ConversationID)
	if row == nil {
		t.Fatal("conversation missing")
	}
	if len(row.Messages) != 1 {
		t.Errorf("component leaked into snapshot: %d messages", len(row.Messages))
	}
	if len(row.OrderNumbers) != 2 {
		t.Errorf("order numbers not aggregated: %v", row.OrderNumbers)
	}
}
