package mysql

import (
	"atelier/internal/model"
	"atelier/pkg/constants"
	"atelier/pkg/lifecycle"
	mysqlmodel "atelier/pkg/store/mysql/model"
)

// ToProjectDomain converts MySQL Project to domain Project model
func ToProjectDomain(p *mysqlmodel.Project) *model.Project {
	if p == nil {
		return nil
	}
	return &model.Project{
		ID:                  p.ProjectID,
		Title:               p.Title,
		Description:         p.Description,
		Skill:               constants.Skill(p.Skill),
		Status:              lifecycle.Status(p.Status),
		ClientID:            p.ClientID,
		WorkerID:            p.WorkerID,
		BudgetHint:          p.BudgetHint,
		TotalPrice:          p.TotalPrice,
		TotalPaid:           p.TotalPaid,
		DepositPaymentID:    p.DepositPaymentID,
		BalancePaymentID:    p.BalancePaymentID,
		FinalDeliverableRef: p.FinalDeliverableRef,
		AssignmentMethod:    constants.AssignmentMethod(p.AssignmentMethod),
		AssignmentDeadline:  p.AssignmentDeadline,
		Reason:              p.Reason,
		SampleFeedback:      p.SampleFeedback,
		ActiveAgreementID:   p.ActiveAgreementID,
		MatchAttempt:        p.MatchAttempt,
		PayoutSplitDone:     p.PayoutSplitDone,
		Version:             p.Version,
		AssignedAt:          p.AssignedAt,
		CompletedAt:         p.CompletedAt,
		DeliveryApprovedAt:  p.DeliveryApprovedAt,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}

// FromProjectDomain converts domain Project model to MySQL Project
func FromProjectDomain(p *model.Project) *mysqlmodel.Project {
	if p == nil {
		return nil
	}
	return &mysqlmodel.Project{
		ProjectID:           p.ID,
		Title:               p.Title,
		Description:         p.Description,
		Skill:               string(p.Skill),
		Status:              string(p.Status),
		ClientID:            p.ClientID,
		WorkerID:            p.WorkerID,
		BudgetHint:          p.BudgetHint,
		TotalPrice:          p.TotalPrice,
		TotalPaid:           p.TotalPaid,
		DepositPaymentID:    p.DepositPaymentID,
		BalancePaymentID:    p.BalancePaymentID,
		FinalDeliverableRef: p.FinalDeliverableRef,
		AssignmentMethod:    string(p.AssignmentMethod),
		AssignmentDeadline:  p.AssignmentDeadline,
		Reason:              p.Reason,
		SampleFeedback:      p.SampleFeedback,
		ActiveAgreementID:   p.ActiveAgreementID,
		MatchAttempt:        p.MatchAttempt,
		PayoutSplitDone:     p.PayoutSplitDone,
		Version:             p.Version,
		AssignedAt:          p.AssignedAt,
		CompletedAt:         p.CompletedAt,
		DeliveryApprovedAt:  p.DeliveryApprovedAt,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}

// ToWorkerDomain converts MySQL Worker to domain Worker model
func ToWorkerDomain(w *mysqlmodel.Worker) *model.Worker {
	if w == nil {
		return nil
	}
	return &model.Worker{
		ID:                 w.WorkerID,
		Name:               w.Name,
		Skills:             []string(w.Skills),
		Available:          w.Available,
		Rating:             w.Rating,
		ActiveProjectCount: w.ActiveProjectCount,
		MaxProjectLimit:    w.MaxProjectLimit,
		PriceTier:          constants.PriceTier(w.PriceTier),
		CompletedCount:     w.CompletedCount,
		CreatedAt:          w.CreatedAt,
		UpdatedAt:          w.UpdatedAt,
	}
}

// FromWorkerDomain converts domain Worker model to MySQL Worker
func FromWorkerDomain(w *model.Worker) *mysqlmodel.Worker {
	if w == nil {
		return nil
	}
	return &mysqlmodel.Worker{
		WorkerID:           w.ID,
		Name:               w.Name,
		Skills:             mysqlmodel.JSONStringArray(w.Skills),
		Available:          w.Available,
		Rating:             w.Rating,
		ActiveProjectCount: w.ActiveProjectCount,
		MaxProjectLimit:    w.MaxProjectLimit,
		PriceTier:          string(w.PriceTier),
		CompletedCount:     w.CompletedCount,
		CreatedAt:          w.CreatedAt,
		UpdatedAt:          w.UpdatedAt,
	}
}

// ToAgreementDomain converts MySQL Agreement to domain Agreement model
func ToAgreementDomain(a *mysqlmodel.Agreement) *model.Agreement {
	if a == nil {
		return nil
	}
	return &model.Agreement{
		ID:            a.AgreementID,
		ProjectID:     a.ProjectID,
		WorkerID:      a.WorkerID,
		Amount:        a.Amount,
		DepositAmount: a.DepositAmount,
		BalanceAmount: a.BalanceAmount,
		Deliverables:  a.Deliverables,
		Timeline:      a.Timeline,
		Notes:         a.Notes,
		Status:        constants.AgreementStatus(a.Status),
		RevisionNote:  a.RevisionNote,
		ClientAgreed:  a.ClientAgreed,
		WorkerAgreed:  a.WorkerAgreed,
		Superseded:    a.Superseded,
		AcceptedAt:    a.AcceptedAt,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// FromAgreementDomain converts domain Agreement model to MySQL Agreement
func FromAgreementDomain(a *model.Agreement) *mysqlmodel.Agreement {
	if a == nil {
		return nil
	}
	return &mysqlmodel.Agreement{
		AgreementID:   a.ID,
		ProjectID:     a.ProjectID,
		WorkerID:      a.WorkerID,
		Amount:        a.Amount,
		DepositAmount: a.DepositAmount,
		BalanceAmount: a.BalanceAmount,
		Deliverables:  a.Deliverables,
		Timeline:      a.Timeline,
		Notes:         a.Notes,
		Status:        string(a.Status),
		RevisionNote:  a.RevisionNote,
		ClientAgreed:  a.ClientAgreed,
		WorkerAgreed:  a.WorkerAgreed,
		Superseded:    a.Superseded,
		AcceptedAt:    a.AcceptedAt,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// ToPaymentDomain converts MySQL Payment to domain Payment model
func ToPaymentDomain(p *mysqlmodel.Payment) *model.Payment {
	if p == nil {
		return nil
	}
	return &model.Payment{
		ID:          p.PaymentID,
		ProjectID:   p.ProjectID,
		ClientID:    p.ClientID,
		Amount:      p.Amount,
		Phase:       constants.PaymentPhase(p.Phase),
		Status:      p.Status,
		ExternalRef: p.ExternalRef,
		CreatedAt:   p.CreatedAt,
	}
}

// FromPaymentDomain converts domain Payment model to MySQL Payment
func FromPaymentDomain(p *model.Payment) *mysqlmodel.Payment {
	if p == nil {
		return nil
	}
	return &mysqlmodel.Payment{
		PaymentID:   p.ID,
		ProjectID:   p.ProjectID,
		ClientID:    p.ClientID,
		Amount:      p.Amount,
		Phase:       string(p.Phase),
		Status:      p.Status,
		ExternalRef: p.ExternalRef,
		CreatedAt:   p.CreatedAt,
	}
}

// ToProjectEventDomain converts MySQL ProjectEvent to domain ProjectEvent model
func ToProjectEventDomain(e *mysqlmodel.ProjectEvent) *model.ProjectEvent {
	if e == nil {
		return nil
	}
	return &model.ProjectEvent{
		ID:         e.EventID,
		ProjectID:  e.ProjectID,
		Event:      lifecycle.Event(e.Event),
		FromStatus: lifecycle.Status(e.FromStatus),
		ToStatus:   lifecycle.Status(e.ToStatus),
		ActorID:    e.ActorID,
		WorkerID:   e.WorkerID,
		Reason:     e.Reason,
		Metadata:   map[string]interface{}(e.Metadata),
		EventTime:  e.EventTime,
	}
}

// FromProjectEventDomain converts domain ProjectEvent model to MySQL ProjectEvent
func FromProjectEventDomain(e *model.ProjectEvent) *mysqlmodel.ProjectEvent {
	if e == nil {
		return nil
	}
	return &mysqlmodel.ProjectEvent{
		EventID:    e.ID,
		ProjectID:  e.ProjectID,
		Event:      string(e.Event),
		FromStatus: string(e.FromStatus),
		ToStatus:   string(e.ToStatus),
		ActorID:    e.ActorID,
		WorkerID:   e.WorkerID,
		Reason:     e.Reason,
		Metadata:   mysqlmodel.JSONMap(e.Metadata),
		EventTime:  e.EventTime,
	}
}
