package reconcile

import "voicecrm/api/internal/record"

// SetCustomerField writes value into the customer mapping of the live record
// or draft addressed by key. Reference rows and unknown keys are left as is.
func SetCustomerField(s State, key, field, value string) State {
	return mutate(s, key, func(rec *record.Record) *record.Record {
		return rec.WithCustomerField(field, value)
	})
}

// SetSummary writes the interaction summary.
func SetSummary(s State, key, value string) State {
	return mutate(s, key, func(rec *record.Record) *record.Record {
		return rec.WithSummary(value)
	})
}

// SetTranscript overwrites the transcript.
func SetTranscript(s State, key, value string) State {
	return mutate(s, key, func(rec *record.Record) *record.Record {
		return rec.WithTranscript(value)
	})
}

// SetDraft places an extraction result in the editor slot, replacing any
// previous draft.
func SetDraft(s State, draft *record.Record) State {
	s.Draft = draft
	return s
}

// AssignDraftID merges a server-assigned identity into the draft. It is a
// no-op when the draft already has one.
func AssignDraftID(s State, id string) State {
	if s.Draft == nil || !s.Draft.IsNew() {
		return s
	}
	s.Draft = s.Draft.WithID(id)
	return s
}

// Remove drops a live record after the server acknowledged its deletion,
// collapsing it if it was expanded.
func Remove(s State, key string) State {
	i := s.liveIndex(key)
	if i < 0 {
		return s
	}
	live := make([]*record.Record, 0, len(s.Live)-1)
	live = append(live, s.Live[:i]...)
	live = append(live, s.Live[i+1:]...)
	s.Live = live
	if s.Expanded == key {
		s.Expanded = ""
	}
	return s
}

func mutate(s State, key string, apply func(*record.Record) *record.Record) State {
	if key == DraftKey {
		if s.Draft != nil && s.Draft.Editable() {
			s.Draft = apply(s.Draft)
		}
		return s
	}
	i := s.liveIndex(key)
	if i < 0 || !s.Live[i].Editable() {
		return s
	}
	live := make([]*record.Record, len(s.Live))
	copy(live, s.Live)
	live[i] = apply(s.Live[i])
	s.Live = live
	return s
}
