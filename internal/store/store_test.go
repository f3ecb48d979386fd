package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateUser(ctx, UserCreate{Email: "ada@example.com", FullName: "Ada Lovelace", Password: "secret123"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if created.ID == 0 || !created.IsActive {
		t.Fatalf("created user = %+v", created)
	}
	if created.HashedPassword == "secret123" {
		t.Fatal("password stored in plaintext")
	}
	if !VerifyPassword("secret123", created.HashedPassword) {
		t.Fatal("stored hash does not verify")
	}

	byEmail, err := s.GetUserByEmail(ctx, "ada@example.com")
	if err != nil || byEmail.ID != created.ID {
		t.Fatalf("GetUserByEmail: %v %+v", err, byEmail)
	}

	updated, err := s.UpdateUser(ctx, created.ID, UserUpdate{FullName: strPtr("Ada King"), IsActive: boolPtr(false)})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if updated.FullName != "Ada King" || updated.IsActive {
		t.Fatalf("update not applied: %+v", updated)
	}
	if updated.Email != "ada@example.com" {
		t.Fatalf("unset field changed: %+v", updated)
	}
	if updated.UpdatedAt == nil {
		t.Fatal("UpdatedAt not set on update")
	}

	if err := s.DeleteUser(ctx, created.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := s.GetUser(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetUser after delete = %v, want ErrNotFound", err)
	}
}

func TestUserUpdatePasswordRehashes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, UserCreate{Email: "x@example.com", FullName: "X", Password: "oldpass"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	updated, err := s.UpdateUser(ctx, u.ID, UserUpdate{Password: strPtr("newpass")})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if VerifyPassword("oldpass", updated.HashedPassword) {
		t.Fatal("old password still verifies")
	}
	if !VerifyPassword("newpass", updated.HashedPassword) {
		t.Fatal("new password does not verify")
	}
}

func TestUserMissingRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetUser(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetUser = %v", err)
	}
	if _, err := s.UpdateUser(ctx, 42, UserUpdate{FullName: strPtr("nobody")}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateUser = %v", err)
	}
	if err := s.DeleteUser(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteUser = %v", err)
	}
}

func TestItemCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner, err := s.CreateUser(ctx, UserCreate{Email: "o@example.com", FullName: "Owner", Password: "pw"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	item, err := s.CreateItem(ctx, ItemCreate{Title: "first", Description: "desc", OwnerID: owner.ID})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if item.OwnerID != owner.ID || !item.IsActive {
		t.Fatalf("created item = %+v", item)
	}

	updated, err := s.UpdateItem(ctx, item.ID, ItemUpdate{Title: strPtr("renamed")})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if updated.Title != "renamed" || updated.Description != "desc" {
		t.Fatalf("partial update broken: %+v", updated)
	}

	if err := s.DeleteItem(ctx, item.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if _, err := s.GetItem(ctx, item.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetItem after delete = %v", err)
	}
}

func TestListPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.CreateItem(ctx, ItemCreate{Title: "item", OwnerID: 1}); err != nil {
			t.Fatalf("CreateItem: %v", err)
		}
	}

	page, err := s.ListItems(ctx, 2, 2)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(page) != 2 || page[0].ID != 3 {
		t.Fatalf("page = %+v", page)
	}

	// defaults: skip 0, limit 100
	all, err := s.ListItems(ctx, -1, 0)
	if err != nil {
		t.Fatalf("ListItems defaults: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("len(all) = %d", len(all))
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	s, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "f.db"))
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	s.Close()

	if _, err := Open(context.Background(), "oracle", ""); err == nil {
		t.Fatal("unknown driver must fail")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry[int]()
	r.Put("a", 1)
	r.Put("a", 2)
	r.Put("b", 3)

	if v, ok := r.Get("a"); !ok || v != 2 {
		t.Fatalf("Get a = %d %v", v, ok)
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d", r.Len())
	}
	if !r.Delete("a") || r.Delete("a") {
		t.Fatal("Delete semantics broken")
	}
	if keys := r.Keys(); len(keys) != 1 || keys[0] != "b" {
		t.Fatalf("Keys = %v", keys)
	}
}
