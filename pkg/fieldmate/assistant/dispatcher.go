package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/accounting"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/docgen"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/mailer"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/store"
)

// Sync statuses for the best-effort accounting mirror.
const (
	SyncOK      = "ok"
	SyncSkipped = "skipped"
	SyncFailed  = "failed"
)

// Envelope is the dispatcher's uniform result shape. A failed envelope is a
// normal outcome, not an error: Dispatch never panics and never returns a
// Go error to its caller.
type Envelope struct {
	Success       bool
	Data          any
	Error         string
	MissingFields []string

	// EmailStatus reports post-mutation email delivery: "", "sent", or
	// "failed: <reason>". Soft by contract.
	EmailStatus string

	// SyncStatus reports the accounting mirror: "", ok, skipped, or failed.
	// Local truth wins; a failed sync still reports Success.
	SyncStatus string

	// Meta accompanies fetch results.
	Meta *FetchMeta
}

// FetchMeta describes a paginated read.
type FetchMeta struct {
	Total    int `json:"total"`
	Returned int `json:"returned"`
	Limit    int `json:"limit"`
	Skip     int `json:"skip"`
}

func fail(msg string) *Envelope {
	return &Envelope{Success: false, Error: msg}
}

func failMissing(fields []string) *Envelope {
	return &Envelope{Success: false, Error: "missing required fields", MissingFields: fields}
}

// Dispatcher routes a typed intent to its domain handler.
type Dispatcher struct {
	store      *store.Store
	resolver   *Resolver
	accounting accounting.Client
	session    *accounting.Session
	mailer     mailer.Sender
	logger     *slog.Logger
}

// NewDispatcher creates a dispatcher. accountingClient and mailSender may be
// nil; the matching side channels then report skipped/failed without
// affecting local mutations.
func NewDispatcher(s *store.Store, accountingClient accounting.Client, session *accounting.Session, mailSender mailer.Sender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:      s,
		resolver:   NewResolver(s),
		accounting: accountingClient,
		session:    session,
		mailer:     mailSender,
		logger:     logger.With("component", "dispatcher"),
	}
}

// actionSpec binds an action name to its domain, required parameters, and
// handler. The table replaces a string switch so the action set is closed
// and each entry is unit-testable.
type actionSpec struct {
	Domain   string
	Required []string
	handler  func(*Dispatcher, context.Context, string, Params) *Envelope
}

var actionTable = map[string]actionSpec{
	ActionCreateTask:   {DomainTask, []string{"title"}, (*Dispatcher).createTask},
	ActionUpdateTask:   {DomainTask, []string{"taskId"}, (*Dispatcher).updateTask},
	ActionCompleteTask: {DomainTask, []string{"taskId"}, (*Dispatcher).completeTask},
	ActionDeleteTask:   {DomainTask, []string{"taskId"}, (*Dispatcher).deleteTask},
	ActionFetchTasks:   {DomainTask, nil, (*Dispatcher).fetchTasks},

	ActionCreateEvent: {DomainEvent, []string{"title", "startTime"}, (*Dispatcher).createEvent},
	ActionUpdateEvent: {DomainEvent, []string{"eventId"}, (*Dispatcher).updateEvent},
	ActionCancelEvent: {DomainEvent, []string{"eventId"}, (*Dispatcher).cancelEvent},
	ActionDeleteEvent: {DomainEvent, []string{"eventId"}, (*Dispatcher).deleteEvent},
	ActionFetchEvents: {DomainEvent, nil, (*Dispatcher).fetchEvents},

	ActionCreateInvoice:   {DomainInvoice, []string{"clientName", "amount", "dueDate"}, (*Dispatcher).createInvoice},
	ActionUpdateInvoice:   {DomainInvoice, []string{"invoiceId"}, (*Dispatcher).updateInvoice},
	ActionMarkInvoicePaid: {DomainInvoice, []string{"invoiceId"}, (*Dispatcher).markInvoicePaid},
	ActionSendInvoice:     {DomainInvoice, []string{"invoiceId", "email"}, (*Dispatcher).sendInvoice},
	ActionDeleteInvoice:   {DomainInvoice, []string{"invoiceId"}, (*Dispatcher).deleteInvoice},
	ActionFetchInvoices:   {DomainInvoice, nil, (*Dispatcher).fetchInvoices},

	ActionGeneralChat: {DomainNone, nil, (*Dispatcher).generalChat},
}

// paramPresence checks a required field by name. Record-reference fields
// (taskId, eventId, invoiceId) are satisfied by any resolvable alias, since
// the resolver accepts titles and client names too.
var paramPresence = map[string]func(Params) bool{
	"title":      func(p Params) bool { return p.Title != "" },
	"startTime":  func(p Params) bool { return p.StartTime != "" },
	"clientName": func(p Params) bool { return p.ClientName != "" },
	"amount":     func(p Params) bool { return p.Amount != nil },
	"dueDate":    func(p Params) bool { return p.DueDate != "" },
	"email":      func(p Params) bool { return p.Email != "" },
	"taskId":     func(p Params) bool { return p.TaskID != "" || p.Title != "" },
	"eventId":    func(p Params) bool { return p.EventID != "" || p.Title != "" },
	"invoiceId":  func(p Params) bool { return p.InvoiceID != "" || p.ClientName != "" },
}

// Dispatch executes one intent and returns its result envelope. Missing
// required fields short-circuit with a failed envelope; everything else runs
// the action handler, which converts its own failures into envelopes too.
func (d *Dispatcher) Dispatch(ctx context.Context, accountID string, intent *Intent) *Envelope {
	spec, ok := actionTable[intent.Action]
	if !ok {
		return fail(fmt.Sprintf("unknown action %q", intent.Action))
	}

	var missing []string
	for _, field := range spec.Required {
		present, ok := paramPresence[field]
		if !ok || !present(intent.Params) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return failMissing(missing)
	}

	env := spec.handler(d, ctx, accountID, intent.Params)
	if !env.Success {
		d.logger.Debug("action failed", "action", intent.Action, "error", env.Error)
	}
	return env
}

// ---------- Tasks ----------

func (d *Dispatcher) createTask(ctx context.Context, accountID string, p Params) *Envelope {
	now := time.Now()
	due := now.Add(7 * 24 * time.Hour)
	if p.DueDate != "" {
		if parsed, ok := parseLooseDate(p.DueDate, now); ok {
			if parsed.Before(now.Truncate(24*time.Hour)) && !p.AllowPastDue {
				return fail("Due date cannot be in the past")
			}
			due = parsed
		}
		// Unparseable due dates fall back to the one-week default; due date
		// is optional on creation and has a defined default policy.
	}

	task := &store.Task{
		AccountID:   accountID,
		Title:       p.Title,
		Description: p.Description,
		DueDate:     due,
		Priority:    normalizePriority(p.Priority),
		Status:      normalizeStatus(p.Status),
		Tags:        p.Tags,
		Project:     p.Project,
	}
	if err := d.store.CreateTask(ctx, task); err != nil {
		return fail("could not save task: " + err.Error())
	}
	return &Envelope{Success: true, Data: task}
}

func (d *Dispatcher) updateTask(ctx context.Context, accountID string, p Params) *Envelope {
	ref := p.TaskID
	if ref == "" {
		ref = p.Title
	}
	task, err := d.resolver.ResolveTask(ctx, accountID, ref)
	if err != nil {
		return fail("could not look up task: " + err.Error())
	}
	if task == nil {
		return fail(errNotFound("task").Message)
	}

	// A title param is the new title only when the task was addressed by id;
	// otherwise it was the lookup reference.
	if p.TaskID != "" && p.Title != "" {
		task.Title = p.Title
	}
	if p.Description != "" {
		task.Description = p.Description
	}
	if p.Priority != "" {
		task.Priority = normalizePriority(p.Priority)
	}
	if p.Status != "" {
		task.Status = normalizeStatus(p.Status)
		// A status change away from Completed reopens the task; otherwise
		// the store's lockstep normalization would force it straight back.
		if task.Status != store.StatusCompleted {
			task.Completed = false
		}
	}
	if p.Completed != nil {
		task.Completed = *p.Completed
		if !task.Completed && task.Status == store.StatusCompleted {
			task.Status = store.StatusInProgress
		}
	}
	if p.Project != "" {
		task.Project = p.Project
	}
	if len(p.Tags) > 0 {
		task.Tags = p.Tags
	}
	if p.DueDate != "" {
		now := time.Now()
		if parsed, ok := parseLooseDate(p.DueDate, now); ok {
			if parsed.Before(now.Truncate(24*time.Hour)) && !p.AllowPastDue {
				return fail("Due date cannot be in the past")
			}
			task.DueDate = parsed
		}
	}

	if err := d.store.UpdateTask(ctx, task); err != nil {
		return fail("could not save task: " + err.Error())
	}
	return &Envelope{Success: true, Data: task}
}

func (d *Dispatcher) completeTask(ctx context.Context, accountID string, p Params) *Envelope {
	ref := p.TaskID
	if ref == "" {
		ref = p.Title
	}
	task, err := d.resolver.ResolveTask(ctx, accountID, ref)
	if err != nil {
		return fail("could not look up task: " + err.Error())
	}
	if task == nil {
		return fail(errNotFound("task").Message)
	}

	task.Completed = true
	if err := d.store.UpdateTask(ctx, task); err != nil {
		return fail("could not save task: " + err.Error())
	}
	return &Envelope{Success: true, Data: task}
}

func (d *Dispatcher) deleteTask(ctx context.Context, accountID string, p Params) *Envelope {
	ref := p.TaskID
	if ref == "" {
		ref = p.Title
	}
	task, err := d.resolver.ResolveTask(ctx, accountID, ref)
	if err != nil {
		return fail("could not look up task: " + err.Error())
	}
	if task == nil {
		return fail(errNotFound("task").Message)
	}
	if err := d.store.DeleteTask(ctx, accountID, task.ID); err != nil {
		return fail("could not delete task: " + err.Error())
	}
	return &Envelope{Success: true, Data: task}
}

func (d *Dispatcher) fetchTasks(ctx context.Context, accountID string, p Params) *Envelope {
	now := time.Now()
	q := store.TaskQuery{
		Completed: p.Completed,
		Status:    normalizeStatus(p.Status),
		Priority:  normalizePriority(p.Priority),
		Project:   p.Project,
		Search:    p.Search,
		SortBy:    p.SortBy,
		SortDesc:  p.SortOrder == "desc",
		Skip:      p.Skip,
		Limit:     defaultLimit(p.Limit),
	}
	if len(p.Tags) == 1 {
		q.Tag = p.Tags[0]
	} else if len(p.Tags) > 1 {
		q.TagsAll = p.Tags
	}
	if from, ok := parseLooseDate(p.DateFrom, now); ok {
		q.DueFrom = &from
	}
	if to, ok := parseLooseDate(p.DateTo, now); ok {
		q.DueTo = &to
	}

	tasks, total, err := d.store.ListTasks(ctx, accountID, q)
	if err != nil {
		return fail("could not fetch tasks: " + err.Error())
	}
	return &Envelope{Success: true, Data: tasks, Meta: &FetchMeta{
		Total: total, Returned: len(tasks), Limit: q.Limit, Skip: q.Skip,
	}}
}

// ---------- Events ----------

func (d *Dispatcher) createEvent(ctx context.Context, accountID string, p Params) *Envelope {
	now := time.Now()
	start, ok := parseLooseDate(p.StartTime, now)
	if !ok {
		// Start time is explicit-required: reject rather than default.
		return fail("I couldn't understand the start time " + quote(p.StartTime))
	}

	event := &store.Event{
		AccountID:   accountID,
		Title:       p.Title,
		Description: p.Description,
		Location:    p.Location,
		StartTime:   start,
	}
	if p.EndTime != "" {
		end, ok := parseLooseDate(p.EndTime, now)
		if !ok {
			return fail("I couldn't understand the end time " + quote(p.EndTime))
		}
		if !end.After(start) {
			// Direct user commands reject; only the meeting-extraction batch
			// path auto-corrects.
			return fail("Event end time must be after the start time")
		}
		event.EndTime = &end
	}

	if err := d.store.CreateEvent(ctx, event); err != nil {
		return fail("could not save event: " + err.Error())
	}
	return &Envelope{Success: true, Data: event}
}

func (d *Dispatcher) updateEvent(ctx context.Context, accountID string, p Params) *Envelope {
	ref := p.EventID
	if ref == "" {
		ref = p.Title
	}
	event, err := d.resolver.ResolveEvent(ctx, accountID, ref)
	if err != nil {
		return fail("could not look up event: " + err.Error())
	}
	if event == nil {
		return fail(errNotFound("event").Message)
	}

	if p.EventID != "" && p.Title != "" {
		event.Title = p.Title
	}
	if p.Description != "" {
		event.Description = p.Description
	}
	if p.Location != "" {
		event.Location = p.Location
	}
	if p.Cancelled != nil {
		event.Cancelled = *p.Cancelled
	}
	now := time.Now()
	if p.StartTime != "" {
		start, ok := parseLooseDate(p.StartTime, now)
		if !ok {
			return fail("I couldn't understand the start time " + quote(p.StartTime))
		}
		event.StartTime = start
	}
	if p.EndTime != "" {
		end, ok := parseLooseDate(p.EndTime, now)
		if !ok {
			return fail("I couldn't understand the end time " + quote(p.EndTime))
		}
		event.EndTime = &end
	}
	if event.EndTime != nil && !event.EndTime.After(event.StartTime) {
		return fail("Event end time must be after the start time")
	}

	if err := d.store.UpdateEvent(ctx, event); err != nil {
		return fail("could not save event: " + err.Error())
	}
	return &Envelope{Success: true, Data: event}
}

func (d *Dispatcher) cancelEvent(ctx context.Context, accountID string, p Params) *Envelope {
	ref := p.EventID
	if ref == "" {
		ref = p.Title
	}
	event, err := d.resolver.ResolveEvent(ctx, accountID, ref)
	if err != nil {
		return fail("could not look up event: " + err.Error())
	}
	if event == nil {
		return fail(errNotFound("event").Message)
	}

	event.Cancelled = true
	if err := d.store.UpdateEvent(ctx, event); err != nil {
		return fail("could not save event: " + err.Error())
	}
	return &Envelope{Success: true, Data: event}
}

func (d *Dispatcher) deleteEvent(ctx context.Context, accountID string, p Params) *Envelope {
	ref := p.EventID
	if ref == "" {
		ref = p.Title
	}
	event, err := d.resolver.ResolveEvent(ctx, accountID, ref)
	if err != nil {
		return fail("could not look up event: " + err.Error())
	}
	if event == nil {
		return fail(errNotFound("event").Message)
	}
	if err := d.store.DeleteEvent(ctx, accountID, event.ID); err != nil {
		return fail("could not delete event: " + err.Error())
	}
	return &Envelope{Success: true, Data: event}
}

func (d *Dispatcher) fetchEvents(ctx context.Context, accountID string, p Params) *Envelope {
	now := time.Now()
	q := store.EventQuery{
		Cancelled: p.Cancelled,
		Search:    p.Search,
		SortBy:    p.SortBy,
		SortDesc:  p.SortOrder == "desc",
		Skip:      p.Skip,
		Limit:     defaultLimit(p.Limit),
	}
	if from, ok := parseLooseDate(p.DateFrom, now); ok {
		q.From = &from
	}
	if to, ok := parseLooseDate(p.DateTo, now); ok {
		q.To = &to
	}

	events, total, err := d.store.ListEvents(ctx, accountID, q)
	if err != nil {
		return fail("could not fetch events: " + err.Error())
	}
	return &Envelope{Success: true, Data: events, Meta: &FetchMeta{
		Total: total, Returned: len(events), Limit: q.Limit, Skip: q.Skip,
	}}
}

// ---------- Invoices ----------

func (d *Dispatcher) createInvoice(ctx context.Context, accountID string, p Params) *Envelope {
	if *p.Amount < 0 {
		return fail("Invoice amount must not be negative")
	}
	now := time.Now()
	due, ok := parseLooseDate(p.DueDate, now)
	if !ok {
		return fail("I couldn't understand the due date " + quote(p.DueDate))
	}

	inv := &store.Invoice{
		AccountID:   accountID,
		ClientName:  p.ClientName,
		Amount:      *p.Amount,
		DueDate:     due,
		IssueDate:   parseLooseDateOr(p.IssueDate, now, 0),
		Description: p.Description,
		LineItems:   p.LineItems,
	}
	if err := d.store.CreateInvoice(ctx, inv); err != nil {
		return fail("could not save invoice: " + err.Error())
	}

	env := &Envelope{Success: true, Data: inv}
	env.SyncStatus = d.syncInvoice(ctx, inv, syncOpCreate)
	if p.SendEmail || p.Email != "" {
		env.EmailStatus = d.emailInvoice(ctx, accountID, inv, p.Email)
	}
	return env
}

func (d *Dispatcher) updateInvoice(ctx context.Context, accountID string, p Params) *Envelope {
	ref := p.InvoiceID
	if ref == "" {
		ref = p.ClientName
	}
	inv, err := d.resolver.ResolveInvoice(ctx, accountID, ref)
	if err != nil {
		return fail("could not look up invoice: " + err.Error())
	}
	if inv == nil {
		return fail(errNotFound("invoice").Message)
	}

	if p.InvoiceID != "" && p.ClientName != "" {
		inv.ClientName = p.ClientName
	}
	if p.Amount != nil {
		if *p.Amount < 0 {
			return fail("Invoice amount must not be negative")
		}
		inv.Amount = *p.Amount
	}
	if p.Description != "" {
		inv.Description = p.Description
	}
	if len(p.LineItems) > 0 {
		inv.LineItems = p.LineItems
	}
	now := time.Now()
	if p.DueDate != "" {
		if due, ok := parseLooseDate(p.DueDate, now); ok {
			inv.DueDate = due
		}
	}
	if p.IssueDate != "" {
		if issued, ok := parseLooseDate(p.IssueDate, now); ok {
			inv.IssueDate = issued
		}
	}
	if p.Status != "" {
		switch normalizeInvoiceStatus(p.Status) {
		case store.InvoicePaid:
			paidAt := time.Now().UTC()
			inv.Status = store.InvoicePaid
			inv.PaidDate = &paidAt
		case store.InvoicePending:
			inv.Status = store.InvoicePending
			inv.PaidDate = nil
		case store.InvoiceOverdue:
			inv.Status = store.InvoiceOverdue
			inv.PaidDate = nil
		}
	}

	if err := d.store.UpdateInvoice(ctx, inv); err != nil {
		return fail("could not save invoice: " + err.Error())
	}

	env := &Envelope{Success: true, Data: inv}
	env.SyncStatus = d.syncInvoice(ctx, inv, syncOpUpdate)
	if p.SendEmail || p.Email != "" {
		env.EmailStatus = d.emailInvoice(ctx, accountID, inv, p.Email)
	}
	return env
}

func (d *Dispatcher) markInvoicePaid(ctx context.Context, accountID string, p Params) *Envelope {
	ref := p.InvoiceID
	if ref == "" {
		ref = p.ClientName
	}
	inv, err := d.resolver.ResolveInvoice(ctx, accountID, ref)
	if err != nil {
		return fail("could not look up invoice: " + err.Error())
	}
	if inv == nil {
		return fail(errNotFound("invoice").Message)
	}

	// Stamp the payment time; the due date is deliberately left untouched.
	paidAt := time.Now().UTC()
	inv.Status = store.InvoicePaid
	inv.PaidDate = &paidAt
	if err := d.store.UpdateInvoice(ctx, inv); err != nil {
		return fail("could not save invoice: " + err.Error())
	}

	env := &Envelope{Success: true, Data: inv}
	env.SyncStatus = d.syncInvoice(ctx, inv, syncOpMarkPaid)
	return env
}

func (d *Dispatcher) sendInvoice(ctx context.Context, accountID string, p Params) *Envelope {
	ref := p.InvoiceID
	if ref == "" {
		ref = p.ClientName
	}
	inv, err := d.resolver.ResolveInvoice(ctx, accountID, ref)
	if err != nil {
		return fail("could not look up invoice: " + err.Error())
	}
	if inv == nil {
		return fail(errNotFound("invoice").Message)
	}

	status := d.emailInvoice(ctx, accountID, inv, p.Email)
	if status != "sent" {
		// Sending is the whole action here, so delivery failure fails the
		// envelope, unlike the soft EmailStatus on create and update.
		return fail("could not send the invoice: " + status)
	}
	return &Envelope{Success: true, Data: inv, EmailStatus: status}
}

func (d *Dispatcher) deleteInvoice(ctx context.Context, accountID string, p Params) *Envelope {
	ref := p.InvoiceID
	if ref == "" {
		ref = p.ClientName
	}
	inv, err := d.resolver.ResolveInvoice(ctx, accountID, ref)
	if err != nil {
		return fail("could not look up invoice: " + err.Error())
	}
	if inv == nil {
		return fail(errNotFound("invoice").Message)
	}
	if err := d.store.DeleteInvoice(ctx, accountID, inv.ID); err != nil {
		return fail("could not delete invoice: " + err.Error())
	}
	return &Envelope{Success: true, Data: inv}
}

func (d *Dispatcher) fetchInvoices(ctx context.Context, accountID string, p Params) *Envelope {
	now := time.Now()
	q := store.InvoiceQuery{
		Status:     normalizeInvoiceStatus(p.Status),
		ClientName: p.ClientName,
		Search:     p.Search,
		SortBy:     p.SortBy,
		SortDesc:   p.SortOrder == "desc",
		Skip:       p.Skip,
		Limit:      defaultLimit(p.Limit),
	}
	if from, ok := parseLooseDate(p.DateFrom, now); ok {
		q.IssuedFrom = &from
	}
	if to, ok := parseLooseDate(p.DateTo, now); ok {
		q.IssuedTo = &to
	}

	invoices, total, err := d.store.ListInvoices(ctx, accountID, q)
	if err != nil {
		return fail("could not fetch invoices: " + err.Error())
	}
	return &Envelope{Success: true, Data: invoices, Meta: &FetchMeta{
		Total: total, Returned: len(invoices), Limit: q.Limit, Skip: q.Skip,
	}}
}

func (d *Dispatcher) generalChat(ctx context.Context, accountID string, p Params) *Envelope {
	return &Envelope{Success: true}
}

// ---------- Side channels ----------

type syncOp int

const (
	syncOpCreate syncOp = iota
	syncOpUpdate
	syncOpMarkPaid
)

// syncInvoice mirrors an invoice operation to the accounting system.
// Local truth wins: a failure annotates the stored record and returns
// SyncFailed, never an error.
func (d *Dispatcher) syncInvoice(ctx context.Context, inv *store.Invoice, op syncOp) string {
	if d.accounting == nil || !d.session.Active() {
		return SyncSkipped
	}

	params := accounting.InvoiceParams{
		Reference:   inv.ID,
		ClientName:  inv.ClientName,
		Amount:      inv.Amount,
		DueDate:     inv.DueDate,
		Description: inv.Description,
	}
	for _, li := range inv.LineItems {
		params.LineItems = append(params.LineItems, accounting.LineItem{
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitAmount:  li.UnitAmount,
		})
	}

	var result *accounting.InvoiceResult
	var err error
	switch op {
	case syncOpCreate:
		result, err = d.accounting.CreateInvoice(ctx, d.session, params)
	case syncOpUpdate:
		if inv.XeroInvoiceID == "" {
			result, err = d.accounting.CreateInvoice(ctx, d.session, params)
		} else {
			result, err = d.accounting.UpdateInvoice(ctx, d.session, inv.XeroInvoiceID, params)
		}
	case syncOpMarkPaid:
		if inv.XeroInvoiceID == "" {
			return SyncSkipped
		}
		paidAt := time.Now()
		if inv.PaidDate != nil {
			paidAt = *inv.PaidDate
		}
		result, err = d.accounting.MarkInvoiceAsPaid(ctx, d.session, inv.XeroInvoiceID, paidAt, inv.Amount)
	}

	if err != nil {
		d.logger.Warn("accounting sync failed",
			"invoice", inv.ID, "kind", accounting.KindOf(err).String(), "error", err)
		inv.XeroSyncError = err.Error()
		if updateErr := d.store.UpdateInvoice(ctx, inv); updateErr != nil {
			d.logger.Error("could not record sync error", "invoice", inv.ID, "error", updateErr)
		}
		return SyncFailed
	}

	inv.XeroInvoiceID = result.InvoiceID
	inv.XeroStatus = result.Status
	inv.XeroSyncError = ""
	if err := d.store.UpdateInvoice(ctx, inv); err != nil {
		d.logger.Error("could not record sync result", "invoice", inv.ID, "error", err)
	}
	return SyncOK
}

// emailInvoice renders the invoice document and emails it. Returns "sent" or
// "failed: <reason>".
func (d *Dispatcher) emailInvoice(ctx context.Context, accountID string, inv *store.Invoice, to string) string {
	if d.mailer == nil {
		return "failed: email delivery is not configured"
	}
	if to == "" {
		return "failed: no recipient email"
	}
	account, err := d.store.GetAccount(ctx, accountID)
	if err != nil {
		return "failed: " + err.Error()
	}

	doc, err := docgen.RenderInvoice(inv, account)
	if err != nil {
		return "failed: " + err.Error()
	}

	email := &mailer.Email{
		To:      to,
		Subject: fmt.Sprintf("Invoice for %s ($%.2f)", inv.ClientName, inv.Amount),
		Text:    fmt.Sprintf("Please find attached the invoice for %s, $%.2f, due %s.", inv.ClientName, inv.Amount, inv.DueDate.Format("2 January 2006")),
		Attachments: []mailer.Attachment{{
			Filename: "invoice.html",
			MIMEType: docgen.DocumentMIME,
			Content:  doc,
		}},
	}
	if err := d.mailer.Send(ctx, email); err != nil {
		d.logger.Warn("invoice email failed", "invoice", inv.ID, "to", to, "error", err)
		return "failed: " + err.Error()
	}
	return "sent"
}

// ---------- Coercion helpers ----------

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}

func quote(s string) string {
	return fmt.Sprintf("%q", s)
}

func normalizePriority(p string) string {
	switch {
	case strings.EqualFold(p, store.PriorityLow):
		return store.PriorityLow
	case strings.EqualFold(p, store.PriorityMedium):
		return store.PriorityMedium
	case strings.EqualFold(p, store.PriorityHigh):
		return store.PriorityHigh
	default:
		return ""
	}
}

func normalizeStatus(s string) string {
	switch {
	case strings.EqualFold(s, store.StatusNotStarted), strings.EqualFold(s, "not_started"):
		return store.StatusNotStarted
	case strings.EqualFold(s, store.StatusInProgress), strings.EqualFold(s, "in_progress"):
		return store.StatusInProgress
	case strings.EqualFold(s, store.StatusCompleted):
		return store.StatusCompleted
	case strings.EqualFold(s, store.StatusOnHold), strings.EqualFold(s, "on_hold"):
		return store.StatusOnHold
	default:
		return ""
	}
}

func normalizeInvoiceStatus(s string) string {
	switch {
	case strings.EqualFold(s, store.InvoicePending):
		return store.InvoicePending
	case strings.EqualFold(s, store.InvoicePaid):
		return store.InvoicePaid
	case strings.EqualFold(s, store.InvoiceOverdue):
		return store.InvoiceOverdue
	default:
		return ""
	}
}

