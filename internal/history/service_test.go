package history

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestServiceSavePending(t *testing.T) {
	pub := &recordingPublisher{}
	store := NewMemoryStore()
	svc := NewService(store, pub)
	ctx := context.Background()

	if _, err := svc.Pending("u1"); !errors.Is(err, ErrNoPendingRun) {
		t.Fatalf("expected no pending run")
	}

	svc.Complete("u1", sampleRun("run_a", time.Now()))
	pending, err := svc.Pending("u1")
	if err != nil || pending.ID != "run_a" {
		t.Fatalf("pending: %+v %v", pending, err)
	}
	if _, err := svc.Pending("u2"); !errors.Is(err, ErrNoPendingRun) {
		t.Fatalf("pending run must be scoped to its owner")
	}

	saved, err := svc.SavePending(ctx, "u1")
	if err != nil || saved.ID != "run_a" {
		t.Fatalf("save: %+v %v", saved, err)
	}
	if _, err := svc.Pending("u1"); !errors.Is(err, ErrNoPendingRun) {
		t.Fatalf("expected pending cleared after save")
	}
	if len(pub.runs) != 1 || pub.runs[0].ID != "run_a" {
		t.Fatalf("expected one published run, got %+v", pub.runs)
	}

	runs, _ := svc.List(ctx, "u1")
	if len(runs) != 1 {
		t.Fatalf("expected saved run in history")
	}
	if _, err := svc.Get(ctx, "u2", "run_a"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("foreign run must not be visible")
	}
}

func TestServiceDiscardPending(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)
	svc.Complete("u1", sampleRun("run_a", time.Now()))

	if err := svc.DiscardPending("u2"); !errors.Is(err, ErrNoPendingRun) {
		t.Fatalf("expected ErrNoPendingRun for other user")
	}
	if err := svc.DiscardPending("u1"); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if _, err := svc.SavePending(context.Background(), "u1"); !errors.Is(err, ErrNoPendingRun) {
		t.Fatalf("expected nothing to save after discard")
	}
	runs, _ := svc.List(context.Background(), "u1")
	if len(runs) != 0 {
		t.Fatalf("discarded run must not be stored")
	}
}

func TestServiceCompleteReplacesPending(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)
	svc.Complete("u1", sampleRun("run_a", time.Now()))
	svc.Complete("u1", sampleRun("run_b", time.Now()))

	pending, err := svc.Pending("u1")
	if err != nil || pending.ID != "run_b" {
		t.Fatalf("expected latest run pending, got %+v %v", pending, err)
	}
}

func TestServiceSaveKeepsPendingOnStoreError(t *testing.T) {
	svc := NewService(&failingStore{}, nil)
	svc.Complete("u1", sampleRun("run_a", time.Now()))

	if _, err := svc.SavePending(context.Background(), "u1"); err == nil {
		t.Fatalf("expected store error")
	}
	if _, err := svc.Pending("u1"); err != nil {
		t.Fatalf("pending run must survive a failed save")
	}
}

func TestServicePublishErrorDoesNotFailSave(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewService(NewMemoryStore(), pub)
	svc.Complete("u1", sampleRun("run_a", time.Now()))

	if _, err := svc.SavePending(context.Background(), "u1"); err != nil {
		t.Fatalf("save must not fail on publish error: %v", err)
	}
}
