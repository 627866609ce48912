package core

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/studentkit/internal/db"
)

// DeletionReport describes what DeleteAccount removed and which scans failed.
type DeletionReport struct {
	UserID   string         `json:"userId"`
	State    DeletionState  `json:"state"`
	Writes   int            `json:"writes"`
	Steps    map[string]int `json:"steps"`
	Failures []ScanFailure  `json:"failures,omitempty"`
}

// ScanFailure is a cleanup step that could not list its documents. Its references
// stay behind as orphans.
type ScanFailure struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

// deletionPlan collects mutations from the concurrent scans.
type deletionPlan struct {
	mu       sync.Mutex
	seen     map[string]bool
	muts     []db.Mutation
	steps    map[string]int
	failures []ScanFailure
}

func newDeletionPlan() *deletionPlan {
	return &deletionPlan{seen: map[string]bool{}, steps: map[string]int{}}
}

func (p *deletionPlan) add(step string, muts ...db.Mutation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range muts {
		key := fmt.Sprintf("%d|%s|%s", m.Kind, m.Path, m.Field)
		if p.seen[key] {
			continue
		}
		p.seen[key] = true
		p.muts = append(p.muts, m)
		p.steps[step]++
	}
}

func (p *deletionPlan) fail(step string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, ScanFailure{Step: step, Error: err.Error()})
}

// DeleteAccount removes every document that belongs to or references the user, then
// the Auth account. The caller must have signed in within RecentLoginWindow; otherwise
// nothing is written. Scans that fail are logged and reported, and the deletion goes on
// with whatever the other scans found.
func (s *accountService) DeleteAccount(ctx context.Context, id Identity) (*DeletionReport, error) {
	uid := id.UID
	if !s.beginDeletion(uid) {
		return nil, ErrDeletionInProgress
	}
	if !s.recentLogin(id) {
		s.finishDeletion(uid, DeletionIdle)
		return nil, ErrRecentLoginRequired
	}

	log := s.logger.With(zap.String("userID", uid))
	log.Info("Account deletion started")

	plan := newDeletionPlan()
	var g errgroup.Group
	scan := func(step string, fn func() error) {
		g.Go(func() error {
			if err := fn(); err != nil {
				log.Warn("Deletion scan failed", zap.String("step", step), zap.Error(err))
				plan.fail(step, err)
			}
			return nil
		})
	}

	scan("profiles", func() error {
		profiles, err := s.profiles.List(ctx, uid)
		if err != nil {
			return err
		}
		for _, p := range profiles {
			plan.add("profiles", db.DeleteDoc(db.ProfilePath(uid, p.ID)))
		}
		return nil
	})
	scan("sharedProfileRefs", func() error {
		refs, err := s.shared.ListRefs(ctx, uid)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			plan.add("sharedProfileRefs",
				db.DeleteDoc(db.SharedProfileRefPath(uid, ref.ShareID)),
				db.DeleteDoc(db.SharedProfilePath(ref.ShareID)))
		}
		return nil
	})
	scan("outgoingShares", func() error {
		shares, err := s.shares.ListOutgoing(ctx, uid)
		if err != nil {
			return err
		}
		for _, sh := range shares {
			plan.add("outgoingShares",
				db.DeleteDoc(db.OutgoingSharePath(uid, sh.ShareID)),
				db.DeleteDoc(db.IncomingSharePath(sh.TargetUserID, sh.ShareID)))
		}
		return nil
	})
	scan("incomingShares", func() error {
		shares, err := s.shares.ListIncoming(ctx, uid)
		if err != nil {
			return err
		}
		for _, sh := range shares {
			plan.add("incomingShares",
				db.DeleteDoc(db.IncomingSharePath(uid, sh.ShareID)),
				db.DeleteDoc(db.OutgoingSharePath(sh.OwnerID, sh.ShareID)))
		}
		return nil
	})
	scan("collaborativeProfiles", func() error {
		profiles, err := s.collab.ListForMember(ctx, uid)
		if err != nil {
			return err
		}
		for _, p := range profiles {
			path := db.CollaborativeProfilePath(p.ID)
			if p.OwnerID == uid {
				plan.add("collaborativeProfiles", db.DeleteDoc(path))
				continue
			}
			plan.add("collaborativeProfiles",
				db.ArrayRemove(path, "collaborators", uid),
				db.DeleteField(path, "permissions."+uid))
		}
		return nil
	})
	scan("incomingReferences", func() error {
		docs, err := s.shares.IncomingOwnedBy(ctx, uid)
		if err != nil {
			return err
		}
		for _, d := range docs {
			plan.add("incomingReferences", db.DeleteDoc(d.Path))
		}
		return nil
	})
	scan("outgoingReferences", func() error {
		docs, err := s.shares.OutgoingTargeting(ctx, uid)
		if err != nil {
			return err
		}
		for _, d := range docs {
			plan.add("outgoingReferences", db.DeleteDoc(d.Path))
		}
		return nil
	})
	scan("legacySharedProfiles", func() error {
		shares, err := s.shared.ListByOwner(ctx, uid)
		if err != nil {
			return err
		}
		for _, sh := range shares {
			plan.add("legacySharedProfiles",
				db.DeleteDoc(db.SharedProfilePath(sh.ShareID)),
				db.DeleteDoc(db.SharedProfileRefPath(uid, sh.ShareID)))
		}
		return nil
	})
	_ = g.Wait()

	plan.add("userDocuments", db.DeleteDoc(db.UserSharesPath(uid)), db.DeleteDoc(db.UserPath(uid)))

	sort.Slice(plan.failures, func(i, j int) bool { return plan.failures[i].Step < plan.failures[j].Step })
	report := &DeletionReport{
		UserID:   uid,
		Writes:   len(plan.muts),
		Steps:    plan.steps,
		Failures: plan.failures,
	}

	if err := s.store.Apply(ctx, plan.muts); err != nil {
		return s.failDeletion(log, report, fmt.Errorf("%w: %w", ErrDeletionFailed, err))
	}
	if err := s.auth.DeleteUser(ctx, uid); err != nil {
		return s.failDeletion(log, report, fmt.Errorf("%w: deleting auth account: %w", ErrDeletionFailed, err))
	}

	report.State = DeletionDone
	s.finishDeletion(uid, DeletionDone)
	s.metrics.AccountDeleted(string(DeletionDone))
	log.Info("Account deleted", zap.Int("writes", report.Writes), zap.Int("failedScans", len(report.Failures)))
	return report, nil
}

func (s *accountService) failDeletion(log *zap.Logger, report *DeletionReport, err error) (*DeletionReport, error) {
	report.State = DeletionFailed
	s.finishDeletion(report.UserID, DeletionFailed)
	s.metrics.AccountDeleted(string(DeletionFailed))
	log.Error("Account deletion failed", zap.Error(err))
	return report, err
}
