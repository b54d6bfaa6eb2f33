package turn

import "github.com/codeready-toolchain/concierge/pkg/models"

// Snapshot returns the renderable state in the bound language.
func (m *Machine) Snapshot() Snapshot {
	snap := Snapshot{
		Mode:           m.mode,
		Language:       m.binding.Current(),
		Messages:       append([]models.Message{}, m.messages...),
		Pending:        m.pending,
		LastActivityAt: m.lastActivity,
	}

	switch m.mode {
	case ModeSmartSuggestions:
		snap.SuggestionsTitle = m.text("suggestions.title")
		snap.Nudge = m.nudge
		for _, s := range Suggestions(m.cfg.Links) {
			snap.Suggestions = append(snap.Suggestions, Option{ID: s.ID, Label: m.text("suggestion." + s.ID + ".label")})
		}
	case ModeQuickReplies:
		snap.QuickReplyKind = m.quickKind
		snap.Prompt = m.text("quick_reply." + string(m.quickKind) + ".prompt")
		options := []string{OptionYes, OptionNo}
		if m.quickKind == QuickRepliesGeneral {
			options = []string{OptionContinue, OptionHuman}
		}
		for _, id := range options {
			snap.QuickReplies = append(snap.QuickReplies, Option{ID: id, Label: m.text("quick_reply." + id)})
		}
	case ModeLeadForm:
		f := m.lead
		snap.Lead = &LeadView{
			Step:       f.step,
			Prompt:     m.text("lead.step." + string(f.step)),
			Name:       f.name,
			Email:      f.email,
			Consent:    f.consent,
			Error:      f.err,
			Submitting: f.submitting,
			CanGoBack:  f.step != LeadStepName,
		}
	case ModeExitPrompt:
		snap.Prompt = m.text("exit.prompt")
		snap.ExitOptions = []Option{
			{ID: "show_suggestions", Label: m.text("exit.show_suggestions")},
			{ID: "close", Label: m.text("exit.close")},
		}
	case ModeSummary:
		view := *m.summary
		snap.Summary = &view
	}
	return snap
}
