package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/student-portal/internal/dto"
	"github.com/noah-isme/student-portal/internal/models"
	"github.com/noah-isme/student-portal/internal/navigation"
	"github.com/noah-isme/student-portal/internal/screen"
	"github.com/noah-isme/student-portal/internal/store"
	appErrors "github.com/noah-isme/student-portal/pkg/errors"
)

// ChangeLanguage selects a new preferred language on the profile screen. The
// selection shows immediately, survives reloads while it is being written and
// reverts if the write fails.
func (p *PortalService) ChangeLanguage(ctx context.Context, id string, req dto.LanguageChangeRequest) (*screen.Ticket, error) {
	if err := p.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status,
			fmt.Sprintf("language must be one of %v", models.SupportedLanguages))
	}
	sess, err := p.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := requireScreen(sess, navigation.ScreenProfile); err != nil {
		return nil, err
	}
	profile := sess.profile.Load()
	if profile == nil || profile.State().Phase != screen.PhaseLoaded {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "profile is not loaded")
	}

	lang := req.Language
	return p.submit(screen.Request{
		EntityID: p.cfg.UserID,
		Kind:     models.MutationKindLanguageChange,
		Payload:  lang,
		Writes: []screen.Write{{
			Collection: store.CollectionStudents,
			ID:         p.cfg.UserID,
			Field:      models.FieldPreferredLanguage,
			Value:      lang,
		}},
		Apply: func() func() {
			restore := sess.values.hold(languageKey, lang)
			var previous string
			profile.Update(func(items []models.Profile) []models.Profile {
				previous = items[0].PreferredLanguage
				items[0] = items[0].WithLanguage(lang)
				return items
			})
			return func() {
				restore()
				if live := sess.profile.Load(); live != nil {
					live.Update(func(items []models.Profile) []models.Profile {
						for i := range items {
							items[i] = items[i].WithLanguage(previous)
						}
						return items
					})
				}
			}
		},
		Confirm: func() { sess.values.confirm(languageKey) },
	})
}

// ToggleMembership joins or leaves a group on the groups screen. A nil joined
// flips the current flag. The member count is left as loaded.
func (p *PortalService) ToggleMembership(ctx context.Context, id, group string, joined *bool) (*screen.Ticket, error) {
	sess, err := p.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := requireScreen(sess, navigation.ScreenGroups); err != nil {
		return nil, err
	}
	groups := sess.groups.Load()
	if groups == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "groups are not loaded")
	}
	state := groups.State()
	if state.Phase != screen.PhaseLoaded {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "groups are not loaded")
	}
	index := -1
	for i, g := range state.Items {
		if g.Name == group {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("group %q not found", group))
	}
	previous := state.Items[index].Joined
	target := !previous
	if joined != nil {
		target = *joined
	}

	membershipID := models.MembershipID(p.cfg.UserID, group)
	var writes []screen.Write
	if p.cfg.PersistMembership {
		writes = []screen.Write{{
			Collection: store.CollectionMemberships,
			ID:         membershipID,
			Field:      models.FieldJoined,
			Value:      target,
		}}
	}
	key := membershipKey(group)
	setJoined := func(value bool) {
		if live := sess.groups.Load(); live != nil {
			live.Update(func(items []models.Group) []models.Group {
				for i := range items {
					if items[i].Name == group {
						items[i].Joined = value
					}
				}
				return items
			})
		}
		if !p.cfg.PersistMembership {
			sess.setLocalJoined(group, value)
		}
	}

	return p.submit(screen.Request{
		EntityID: membershipID,
		Kind:     models.MutationKindMembershipToggle,
		Payload:  target,
		Writes:   writes,
		Apply: func() func() {
			restore := sess.values.hold(key, target)
			setJoined(target)
			return func() {
				restore()
				setJoined(previous)
			}
		},
		Confirm: func() { sess.values.confirm(key) },
	})
}

// SubmitHelp sends the need-help form. The confirmation shows immediately
// and is withdrawn if the request cannot be stored.
func (p *PortalService) SubmitHelp(ctx context.Context, id string, req models.HelpRequest) (*screen.Ticket, error) {
	if err := p.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid help request")
	}
	sess, err := p.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := requireScreen(sess, navigation.ScreenHelp); err != nil {
		return nil, err
	}
	form := sess.help

	requestID := uuid.NewString()
	var writes []screen.Write
	if p.cfg.PersistHelpRequests {
		field := func(name string, value interface{}) screen.Write {
			return screen.Write{Collection: store.CollectionHelpRequests, ID: requestID, Field: name, Value: value}
		}
		writes = []screen.Write{
			field(models.FieldHelpEmail, req.Email),
			field(models.FieldHelpPhone, req.Phone),
			field(models.FieldHelpMessage, req.Message),
			field(models.FieldHelpSubmittedAt, p.now().UTC().Format(time.RFC3339)),
		}
	}

	return p.submit(screen.Request{
		EntityID: p.cfg.UserID,
		Kind:     models.MutationKindHelpSubmit,
		Payload:  req,
		Writes:   writes,
		Apply: func() func() {
			var previous models.HelpForm
			form.Update(func(items []models.HelpForm) []models.HelpForm {
				previous = items[0]
				items[0] = models.HelpForm{Submitted: true, RequestID: requestID, Confirmation: models.HelpConfirmation}
				return items
			})
			return func() {
				form.Update(func(items []models.HelpForm) []models.HelpForm {
					items[0] = previous
					return items
				})
			}
		},
	})
}

// requireScreen fails unless the session currently shows id. Caller holds
// sess.mu.
func requireScreen(sess *session, id navigation.ScreenID) error {
	if sess.closed {
		return sessionNotFound(sess.id)
	}
	if sess.current.ID != id {
		return appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("session is on %s; open %s first", sess.current.ID, id))
	}
	return nil
}
