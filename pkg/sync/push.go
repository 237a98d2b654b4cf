package sync

import (
	"context"
	"errors"

	"github.com/dmaraujo/hermes-sync/pkg/model"
)

// Push exports local task state. The timestamp comparison is the exact
// mirror of PULL's: local wins only when strictly newer, so equality is
// a no-op on both sides and back-to-back stages cannot oscillate.
func (s *Syncer) Push(ctx context.Context) error {
	listID, err := s.findListID(ctx)
	if err != nil {
		return err
	}

	remote, err := s.tasks.ListTasks(ctx, listID)
	if err != nil {
		return err
	}
	snapshot := make(map[string]model.RemoteTask, len(remote))
	for _, rt := range remote {
		snapshot[rt.ID] = rt
	}

	locals, err := s.store.ListTasks(ctx)
	if err != nil {
		return err
	}

	created, updated, deleted := 0, 0, 0

	for i := range locals {
		t := locals[i]
		if t.IsSystem() {
			continue
		}

		if t.Status == model.StatusDeleted {
			if t.ExternalID != "" {
				err := s.tasks.Delete(ctx, listID, t.ExternalID)
				switch {
				case err == nil, errors.Is(err, model.ErrNotFound):
					deleted++
				default:
					s.log.Logf("ERROR deleting remote %q: %v", t.Title, err)
				}
			}
			// The local row goes away regardless of the remote outcome.
			if err := s.store.DeleteTask(ctx, t.ID); err != nil {
				return err
			}
			continue
		}

		start, end := t.StartTime, t.EndTime
		if start != "" && end == "" {
			end = SynthesizeEnd(start)
		}
		notes := WithTimeRange(t.Notes, start, end)
		body := model.RemoteTask{
			Title:  t.Title,
			Notes:  notes,
			Status: remoteStatus(t.Status),
			Due:    remoteDue(&t),
		}

		if t.ExternalID == "" {
			createdTask, err := s.tasks.Insert(ctx, listID, body)
			if err != nil {
				s.log.Logf("ERROR creating remote %q: %v", t.Title, err)
				continue
			}
			t.ExternalID = createdTask.ID
			t.UpdatedAt = createdTask.Updated
			t.Notes = notes
			if t.EndTime == "" {
				t.EndTime = end
			}
			if err := s.store.PutTask(ctx, &t); err != nil {
				return err
			}
			created++
			s.log.Logf("[+] PUSHED: %s", t.Title)
			continue
		}

		counterpart, known := snapshot[t.ExternalID]
		if known && !t.UpdatedAt.After(counterpart.Updated) {
			continue
		}

		body.ID = t.ExternalID
		if _, err := s.tasks.Update(ctx, listID, body); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				// The remote copy is gone; unlink so the next push
				// recreates it instead of failing forever.
				t.ExternalID = ""
				if err := s.store.PutTask(ctx, &t); err != nil {
					return err
				}
				s.log.Logf("[!] UNLINKED missing remote: %s", t.Title)
			} else {
				s.log.Logf("ERROR updating remote %q: %v", t.Title, err)
			}
			continue
		}
		if notes != t.Notes {
			t.Notes = notes
			if t.EndTime == "" {
				t.EndTime = end
			}
			if err := s.store.PutTask(ctx, &t); err != nil {
				return err
			}
		}
		updated++
		s.log.Logf("[^] UPDATED REMOTE: %s", t.Title)
	}

	s.log.Logf("PUSH done: %d created, %d updated, %d deleted", created, updated, deleted)
	return nil
}
