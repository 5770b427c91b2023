package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/face-inbox/internal/database"
)

func TestMockUserStore_OrderAndFilter(t *testing.T) {
	ctx := context.Background()
	m := NewMockUserStore()

	m.AddUser(database.User{ID: "no-face"})
	a, _ := m.Create(ctx, []float32{1, 2}, time.Now())
	b, _ := m.Create(ctx, []float32{3, 4}, time.Now())

	users, err := m.ListWithEncodings(ctx)
	if err != nil {
		t.Fatalf("ListWithEncodings() error = %v", err)
	}
	if len(users) != 2 || users[0].ID != a.ID || users[1].ID != b.ID {
		t.Fatalf("unexpected users %+v", users)
	}

	all, _ := m.List(ctx)
	if len(all) != 3 || all[0].ID != "no-face" {
		t.Errorf("List() = %+v", all)
	}
}

func TestMockUserStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMockUserStore()
	u, _ := m.Create(ctx, []float32{1}, time.Now())

	got, _ := m.Get(ctx, u.ID)
	got.FaceEncodings[0][0] = 99

	again, _ := m.Get(ctx, u.ID)
	if again.FaceEncodings[0][0] != 1 {
		t.Error("mutation of returned user leaked into the store")
	}
}

func TestMockUserStore_MailLink(t *testing.T) {
	ctx := context.Background()
	m := NewMockUserStore()
	u, _ := m.Create(ctx, []float32{1}, time.Now())

	if err := m.UpdateToken(ctx, u.ID, database.Token{}); !errors.Is(err, database.ErrUserNotFound) {
		t.Errorf("UpdateToken() on unlinked user error = %v", err)
	}
	if err := m.SetMailLink(ctx, u.ID, database.MailLink{Email: "x@example.com"}); err != nil {
		t.Fatalf("SetMailLink() error = %v", err)
	}
	if err := m.UpdateToken(ctx, u.ID, database.Token{AccessToken: "new"}); err != nil {
		t.Fatalf("UpdateToken() error = %v", err)
	}
	got, _ := m.Get(ctx, u.ID)
	if got.Mail.Token.AccessToken != "new" {
		t.Errorf("AccessToken = %q", got.Mail.Token.AccessToken)
	}
	if err := m.ClearMailLink(ctx, u.ID); err != nil {
		t.Fatalf("ClearMailLink() error = %v", err)
	}
	got, _ = m.Get(ctx, u.ID)
	if got.IsLinked() {
		t.Error("expected unlinked")
	}
}

func TestMockUserStore_Delete(t *testing.T) {
	ctx := context.Background()
	m := NewMockUserStore()
	u, _ := m.Create(ctx, []float32{1}, time.Now())

	if err := m.Delete(ctx, u.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := m.Get(ctx, u.ID); !errors.Is(err, database.ErrUserNotFound) {
		t.Errorf("Get() error = %v", err)
	}
	if err := m.Delete(ctx, u.ID); !errors.Is(err, database.ErrUserNotFound) {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestMockUserStore_ErrorInjection(t *testing.T) {
	m := NewMockUserStore()
	m.ListError = errors.New("boom")
	if _, err := m.ListWithEncodings(context.Background()); err == nil {
		t.Error("expected injected error")
	}
}
