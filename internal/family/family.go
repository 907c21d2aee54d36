// Package family implements onboarding: the user document upsert on sign in,
// family creation with seeded categories, and joining by invite code.
//
// A user is in exactly one of three states: unknown (no document),
// onboarding (document without a family) or in a family as owner or member.
// Family id and role are always written together in one atomic unit.
package family

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"kanakku/internal/core"
	"kanakku/internal/ledger"
	"kanakku/internal/log"
)

// maxCodeAttempts bounds invite code regeneration on collision.
const maxCodeAttempts = 5

type Service struct {
	store   ledger.Store
	now     func() time.Time
	newCode func() (string, error)
}

func NewService(store ledger.Store) *Service {
	return &Service{store: store, now: time.Now, newCode: NewInviteCode}
}

// SignIn creates the user document on first sign in and refreshes the email
// afterwards. inviteFamilyID, taken from an invite link, makes the user a
// member of that family; see adopt for the rules on users already in one.
func (s *Service) SignIn(ctx context.Context, uid, email, inviteFamilyID string) (core.User, error) {
	const op = "family.sign_in"
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return core.User{}, core.Validationf(op, "uid is required")
	}
	email = strings.TrimSpace(email)
	inviteFamilyID = strings.TrimSpace(inviteFamilyID)

	var out core.User
	err := s.store.Atomic(ctx, func(tx ledger.Tx) error {
		if inviteFamilyID != "" {
			if _, err := tx.GetFamily(ctx, inviteFamilyID); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		u, err := tx.GetUser(ctx, uid)
		if errors.Is(err, core.ErrNotFound) {
			u = core.User{UID: uid, Email: email, Version: 1, CreatedAt: now, UpdatedAt: now}
			if inviteFamilyID != "" {
				u.FamilyID, u.Role = inviteFamilyID, core.RoleMember
			}
			out = u
			return tx.InsertUser(ctx, u)
		}
		if err != nil {
			return err
		}

		updated := u
		if email != "" {
			updated.Email = email
		}
		if inviteFamilyID != "" {
			if updated, err = adopt(op, updated, inviteFamilyID); err != nil {
				return err
			}
		}
		if updated == u {
			out = u
			return nil
		}
		updated.UpdatedAt = now
		if err := tx.UpdateUser(ctx, updated); err != nil {
			return err
		}
		updated.Version++
		out = updated
		return nil
	})
	if err != nil {
		return core.User{}, core.Classify(op, err)
	}
	slog.InfoContext(ctx, "User signed in",
		log.FieldUID, out.UID, log.FieldFamilyID, out.FamilyID, log.FieldOperation, log.OpSignIn)
	return out, nil
}

// CreateFamily makes an onboarding user the owner of a new family seeded with
// the default categories.
func (s *Service) CreateFamily(ctx context.Context, uid string) (core.Family, core.User, error) {
	const op = "family.create"
	var (
		fam  core.Family
		user core.User
	)
	err := s.store.Atomic(ctx, func(tx ledger.Tx) error {
		u, err := tx.GetUser(ctx, uid)
		if err != nil {
			return err
		}
		if !u.Onboarding() {
			return core.Validationf(op, "user already belongs to a family")
		}

		code, err := s.uniqueCode(ctx, tx, op)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		fam = core.Family{ID: core.NewID(), OwnerID: uid, InviteCode: code, CreatedAt: now}
		if err := tx.InsertFamily(ctx, fam); err != nil {
			return err
		}
		for _, c := range core.DefaultCategories(fam.ID) {
			c.CreatedAt = now
			if err := tx.InsertCategory(ctx, c); err != nil {
				return err
			}
		}

		u.FamilyID, u.Role, u.UpdatedAt = fam.ID, core.RoleOwner, now
		if err := tx.UpdateUser(ctx, u); err != nil {
			return err
		}
		u.Version++
		user = u
		return nil
	})
	if err != nil {
		return core.Family{}, core.User{}, core.Classify(op, err)
	}
	slog.InfoContext(ctx, "Family created",
		log.FieldUID, uid, log.FieldFamilyID, fam.ID, log.FieldOperation, log.OpCreate)
	return fam, user, nil
}

// JoinFamily looks the family up by invite code, ignoring case, and makes the
// user a member. An unknown code fails with not_found and changes nothing.
func (s *Service) JoinFamily(ctx context.Context, uid, inviteCode string) (core.User, error) {
	const op = "family.join"
	code := NormalizeInviteCode(inviteCode)
	if code == "" {
		return core.User{}, core.Validationf(op, "invite code is required")
	}

	var out core.User
	err := s.store.Atomic(ctx, func(tx ledger.Tx) error {
		fam, err := tx.FindFamilyByInviteCode(ctx, code)
		if errors.Is(err, core.ErrNotFound) {
			return core.NotFoundf(op, "no family uses invite code %q", code)
		}
		if err != nil {
			return err
		}
		u, err := tx.GetUser(ctx, uid)
		if err != nil {
			return err
		}
		updated, err := adopt(op, u, fam.ID)
		if err != nil {
			return err
		}
		if updated == u {
			out = u
			return nil
		}
		updated.UpdatedAt = s.now().UTC()
		if err := tx.UpdateUser(ctx, updated); err != nil {
			return err
		}
		updated.Version++
		out = updated
		return nil
	})
	if err != nil {
		return core.User{}, core.Classify(op, err)
	}
	slog.InfoContext(ctx, "User joined family",
		log.FieldUID, uid, log.FieldFamilyID, out.FamilyID, log.FieldOperation, log.OpJoin)
	return out, nil
}

// RotateInviteCode replaces the family's invite code. Owner only.
func (s *Service) RotateInviteCode(ctx context.Context, actor core.Actor) (core.Family, error) {
	const op = "family.rotate_invite_code"
	if err := actor.RequireFamily(op); err != nil {
		return core.Family{}, err
	}
	if !actor.IsOwner() {
		return core.Family{}, core.Unauthorizedf(op, "only the family owner can change the invite code")
	}

	var fam core.Family
	err := s.store.Atomic(ctx, func(tx ledger.Tx) error {
		f, err := tx.GetFamily(ctx, actor.FamilyID)
		if err != nil {
			return err
		}
		if f.OwnerID != actor.UID {
			return core.Unauthorizedf(op, "only the family owner can change the invite code")
		}
		code, err := s.uniqueCode(ctx, tx, op)
		if err != nil {
			return err
		}
		if err := tx.UpdateFamilyInviteCode(ctx, f.ID, code); err != nil {
			return err
		}
		f.InviteCode = code
		fam = f
		return nil
	})
	if err != nil {
		return core.Family{}, core.Classify(op, err)
	}
	return fam, nil
}

// Family returns the actor's family.
func (s *Service) Family(ctx context.Context, actor core.Actor) (core.Family, error) {
	const op = "family.get"
	if err := actor.RequireFamily(op); err != nil {
		return core.Family{}, err
	}
	f, err := s.store.GetFamily(ctx, actor.FamilyID)
	if err != nil {
		return core.Family{}, core.Classify(op, err)
	}
	return f, nil
}

// Members lists the users of the actor's family.
func (s *Service) Members(ctx context.Context, actor core.Actor) ([]core.User, error) {
	const op = "family.members"
	if err := actor.RequireFamily(op); err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx, actor.FamilyID)
	if err != nil {
		return nil, core.Classify(op, err)
	}
	return users, nil
}

// Actor resolves the request principal from the stored user document.
func (s *Service) Actor(ctx context.Context, uid string) (core.Actor, error) {
	const op = "family.actor"
	if uid == "" {
		return core.Actor{}, core.Unauthorizedf(op, "not signed in")
	}
	u, err := s.store.GetUser(ctx, uid)
	if errors.Is(err, core.ErrNotFound) {
		return core.Actor{}, core.Unauthorizedf(op, "sign in before using the ledger")
	}
	if err != nil {
		return core.Actor{}, core.Classify(op, err)
	}
	return u.Actor(), nil
}

// adopt moves u into familyID as a member. Onboarding users and members of
// another family are moved; owners must stay with the family they own.
func adopt(op string, u core.User, familyID string) (core.User, error) {
	if u.FamilyID == familyID {
		return u, nil
	}
	if u.Role == core.RoleOwner && u.FamilyID != "" {
		return core.User{}, core.Validationf(op, "owners cannot join another family")
	}
	u.FamilyID, u.Role = familyID, core.RoleMember
	return u, nil
}

func (s *Service) uniqueCode(ctx context.Context, tx ledger.Tx, op string) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := s.newCode()
		if err != nil {
			return "", err
		}
		_, err = tx.FindFamilyByInviteCode(ctx, code)
		if errors.Is(err, core.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", core.Conflict(op, errors.New("could not generate an unused invite code"))
}
