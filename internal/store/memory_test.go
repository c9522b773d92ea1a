package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"project-polaris/backend/internal/models"
)

func seedProject(t *testing.T, s Store) *models.Project {
	t.Helper()
	p := &models.Project{ID: uuid.New(), OwnerID: uuid.New(), Name: "demo", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, s.Tx(context.Background(), func(tx Tx) error {
		return tx.InsertProject(context.Background(), p)
	}))
	return p
}

func TestInMemoryStore_RollbackOnError(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	p := seedProject(t, s)

	boom := errors.New("boom")
	err := s.Tx(ctx, func(tx Tx) error {
		require.NoError(t, tx.InsertNode(ctx, models.NewFile(p.ID, nil, "a.go", "", time.Now())))
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.Tx(ctx, func(tx Tx) error {
		nodes, err := tx.ListNodes(ctx, p.ID)
		require.NoError(t, err)
		require.Empty(t, nodes)
		return nil
	}))
}

func TestInMemoryStore_NodeLifecycle(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	p := seedProject(t, s)

	folder := models.NewFolder(p.ID, nil, "src", time.Now())
	file := models.NewFile(p.ID, &folder.ID, "main.go", "", time.Now())

	require.NoError(t, s.Tx(ctx, func(tx Tx) error {
		require.NoError(t, tx.InsertNode(ctx, folder))
		require.NoError(t, tx.InsertNode(ctx, file))

		// Same type and name in the same scope is rejected.
		require.ErrorIs(t, tx.InsertNode(ctx, models.NewFolder(p.ID, nil, "src", time.Now())), ErrDuplicate)
		// A missing parent is rejected.
		missing := uuid.New()
		require.ErrorIs(t, tx.InsertNode(ctx, models.NewFile(p.ID, &missing, "x", "", time.Now())), ErrNotFound)

		children, err := tx.ListChildren(ctx, p.ID, &folder.ID)
		require.NoError(t, err)
		require.Len(t, children, 1)
		require.Equal(t, "main.go", children[0].Name)

		roots, err := tx.ListChildren(ctx, p.ID, nil)
		require.NoError(t, err)
		require.Len(t, roots, 1)

		content := "package main"
		require.NoError(t, tx.PatchNode(ctx, file.ID, NodePatch{Content: &content, UpdatedAt: time.Now()}))
		got, err := tx.GetNode(ctx, file.ID)
		require.NoError(t, err)
		require.Equal(t, content, *got.Content)

		// Returned nodes are copies.
		*got.Content = "mutated"
		again, err := tx.GetNode(ctx, file.ID)
		require.NoError(t, err)
		require.Equal(t, content, *again.Content)

		require.NoError(t, tx.DeleteNode(ctx, file.ID))
		require.ErrorIs(t, tx.DeleteNode(ctx, file.ID), ErrNotFound)
		return nil
	}))
}

func TestInMemoryStore_ListProjectsNewestFirst(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	owner := uuid.New()
	base := time.Now()

	require.NoError(t, s.Tx(ctx, func(tx Tx) error {
		for i, name := range []string{"old", "new", "mid"} {
			offset := map[string]time.Duration{"old": 0, "mid": time.Minute, "new": time.Hour}[name]
			p := &models.Project{ID: uuid.New(), OwnerID: owner, Name: name, CreatedAt: base, UpdatedAt: base.Add(offset)}
			require.NoError(t, tx.InsertProject(ctx, p), i)
		}
		require.NoError(t, tx.InsertProject(ctx, &models.Project{ID: uuid.New(), OwnerID: uuid.New(), Name: "other"}))

		projects, err := tx.ListProjects(ctx, owner)
		require.NoError(t, err)
		var got []string
		for _, p := range projects {
			got = append(got, p.Name)
		}
		require.Equal(t, []string{"new", "mid", "old"}, got)
		return nil
	}))
}
