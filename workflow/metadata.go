package workflow

// Metadata is implemented by the known event payload shapes. Fields flattens
// the shape into the string-keyed map stored on the event.
type Metadata interface {
	Fields() map[string]any
}

// Fields is the open form of metadata for event types without a known shape.
type Fields map[string]any

func (f Fields) Fields() map[string]any {
	if len(f) == 0 {
		return nil
	}
	out := make(map[string]any, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

type StatusChange struct {
	From Status
	To   Status
}

func (m StatusChange) Fields() map[string]any {
	return map[string]any{"from": string(m.From), "to": string(m.To)}
}

type OwnerAssignment struct {
	OwnerID   string
	OwnerName string
	Previous  string
}

func (m OwnerAssignment) Fields() map[string]any {
	f := map[string]any{"ownerId": m.OwnerID, "owner": m.OwnerName}
	if m.Previous != "" {
		f["previousOwner"] = m.Previous
	}
	return f
}

type InfoRequest struct {
	StatusChange
	Requested []string
	Note      string
}

func (m InfoRequest) Fields() map[string]any {
	f := m.StatusChange.Fields()
	if len(m.Requested) > 0 {
		fields := make([]string, len(m.Requested))
		copy(fields, m.Requested)
		f["fields"] = fields
	}
	if m.Note != "" {
		f["note"] = m.Note
	}
	return f
}

type Rejection struct {
	StatusChange
	Reason              string
	ResubmissionAllowed bool
}

func (m Rejection) Fields() map[string]any {
	f := m.StatusChange.Fields()
	f["reason"] = m.Reason
	f["resubmissionAllowed"] = m.ResubmissionAllowed
	return f
}

type PayoutRequest struct {
	Amount         string
	BankName       string
	TransactionIDs []string
}

func (m PayoutRequest) Fields() map[string]any {
	ids := make([]string, len(m.TransactionIDs))
	copy(ids, m.TransactionIDs)
	return map[string]any{"amount": m.Amount, "bankName": m.BankName, "transactionIds": ids}
}

type PaymentResult struct {
	StatusChange
	Amount    string
	Reference string
	Reason    string
}

func (m PaymentResult) Fields() map[string]any {
	f := m.StatusChange.Fields()
	f["amount"] = m.Amount
	if m.Reference != "" {
		f["reference"] = m.Reference
	}
	if m.Reason != "" {
		f["reason"] = m.Reason
	}
	return f
}

type Evidence struct {
	Artifact string
	Count    int
	Required int
}

func (m Evidence) Fields() map[string]any {
	return map[string]any{"artifact": m.Artifact, "count": m.Count, "required": m.Required}
}

type Resolution struct {
	StatusChange
	Outcome string
	Summary string
}

func (m Resolution) Fields() map[string]any {
	f := m.StatusChange.Fields()
	f["outcome"] = m.Outcome
	f["summary"] = m.Summary
	return f
}
