package sync

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmaraujo/hermes-sync/pkg/classify"
	"github.com/dmaraujo/hermes-sync/pkg/model"
)

// Pull imports remote task state. A remote task wins only when it is
// strictly newer than its local counterpart and actually differs; ties
// and local-ahead state are left for PUSH to resolve.
func (s *Syncer) Pull(ctx context.Context) error {
	listID, err := s.findListID(ctx)
	if err != nil {
		return err
	}

	remote, err := s.tasks.ListTasks(ctx, listID)
	if err != nil {
		return err
	}
	s.log.Logf("PULL: %d remote tasks fetched", len(remote))

	locals, err := s.store.ListTasks(ctx)
	if err != nil {
		return err
	}
	// Title lookup covers only unlinked locals; linked ones are found
	// through the external-id index.
	byTitle := make(map[string]model.Task)
	for _, t := range locals {
		if t.ExternalID == "" {
			if _, ok := byTitle[t.Title]; !ok {
				byTitle[t.Title] = t
			}
		}
	}

	rules := s.activeRules(ctx)
	imported, updated, linked := 0, 0, 0

	for _, rt := range remote {
		title := rt.Title
		if title == "" {
			title = "(Untitled)"
		}

		start, end := TimeRange(rt.Notes)
		if start != "" && end == "" {
			end = SynthesizeEnd(start)
		}

		local, err := s.store.TaskByExternalID(ctx, rt.ID)
		if err != nil {
			return err
		}
		if local == nil {
			if t, ok := byTitle[title]; ok {
				local = &t
			}
		}

		switch {
		case local != nil && local.ExternalID == "":
			// Title matched an unlinked task: adopt the id only. Field
			// reconciliation waits for the next pass so a half-linked
			// task never loses local edits.
			local.ExternalID = rt.ID
			if err := s.store.PutTask(ctx, local); err != nil {
				return err
			}
			delete(byTitle, title)
			linked++
			s.log.Logf("[~] LINKED: %s", title)

		case local != nil:
			if !rt.Updated.After(local.UpdatedAt) {
				continue
			}
			next := *local
			next.Title = title
			next.Status = localStatus(rt.Status)
			next.Notes = rt.Notes
			next.StartTime = start
			next.EndTime = end
			next.CompletedAt = rt.Completed
			if d := dueDate(rt.Due); d != "" {
				next.DueDate = d
			}
			if !pullChanged(local, &next) {
				continue
			}
			next.UpdatedAt = rt.Updated
			if err := s.store.PutTask(ctx, &next); err != nil {
				return err
			}
			updated++
			s.log.Logf("[-] UPDATED: %s", title)

		default:
			category, goal := classify.Classify(title, rt.Notes, rules)
			t := model.Task{
				ID:               uuid.NewString(),
				Title:            title,
				Project:          "GOOGLE",
				ExternalID:       rt.ID,
				Status:           localStatus(rt.Status),
				DueDate:          dueDate(rt.Due),
				StartTime:        start,
				EndTime:          end,
				Notes:            rt.Notes,
				Category:         category,
				CountsTowardGoal: goal,
				CreatedAt:        s.clock.Now(),
				UpdatedAt:        rt.Updated,
				CompletedAt:      rt.Completed,
				Origin:           model.OriginRemote,
			}
			if err := s.store.PutTask(ctx, &t); err != nil {
				return err
			}
			imported++
			s.log.Logf("[+] IMPORTED: %s", title)
		}
	}

	s.log.Logf("PULL done: %d imported, %d updated, %d linked", imported, updated, linked)
	return nil
}

// pullChanged reports whether applying the remote fields would change
// anything a user can observe.
func pullChanged(old, next *model.Task) bool {
	return old.Title != next.Title ||
		old.Status != next.Status ||
		old.Notes != next.Notes ||
		old.StartTime != next.StartTime ||
		old.EndTime != next.EndTime ||
		old.CompletedAt != next.CompletedAt ||
		old.DueDate != next.DueDate
}
