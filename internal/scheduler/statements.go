// Package scheduler runs periodic jobs of the ledger service.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/Dan9191/ledger-service/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

// UserLister lists candidates for statements
type UserLister interface {
	ListUsers(ctx context.Context) ([]models.User, error)
}

// Summarizer computes a user's report for a period
type Summarizer interface {
	Summarize(ctx context.Context, userID int64, startDate, endDate string) (*models.ReportSummary, error)
}

// StatementMailer delivers a computed statement
type StatementMailer interface {
	SendStatement(to string, summary *models.ReportSummary) error
}

// StatementJob e-mails every active user the summary of the previous calendar month
type StatementJob struct {
	users   UserLister
	reports Summarizer
	mailer  StatementMailer
	log     *logrus.Logger
	now     func() time.Time
	timeout time.Duration
}

// NewStatementJob creates the monthly statement job
func NewStatementJob(users UserLister, reports Summarizer, mailer StatementMailer, log *logrus.Logger) *StatementJob {
	return &StatementJob{
		users:   users,
		reports: reports,
		mailer:  mailer,
		log:     log,
		now:     time.Now,
		timeout: 5 * time.Minute,
	}
}

// PreviousMonth returns the first and last day of the month before now.
func PreviousMonth(now time.Time) (string, string) {
	now = now.UTC()
	firstOfThis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	first := firstOfThis.AddDate(0, -1, 0)
	last := firstOfThis.AddDate(0, 0, -1)
	return first.Format(dateLayout), last.Format(dateLayout)
}

// Run sends statements and returns how many were delivered
func (j *StatementJob) Run(ctx context.Context) (int, error) {
	users, err := j.users.ListUsers(ctx)
	if err != nil {
		return 0, err
	}

	start, end := PreviousMonth(j.now())
	sent := 0
	for _, u := range users {
		if !u.IsActive {
			continue
		}
		entry := j.log.WithFields(logrus.Fields{"user_id": u.ID, "start_date": start, "end_date": end})

		summary, err := j.reports.Summarize(ctx, u.ID, start, end)
		if err != nil {
			if errors.Is(err, models.ErrAccountNotFound) {
				continue
			}
			entry.WithError(err).Error("Failed to build statement")
			continue
		}
		if err := j.mailer.SendStatement(u.Email, summary); err != nil {
			entry.WithError(err).Error("Failed to send statement")
			continue
		}
		sent++
	}

	j.log.Infof("Statements sent: %d for %s - %s", sent, start, end)
	return sent, ctx.Err()
}

// Scheduler wraps the cron runner
type Scheduler struct {
	cron *cron.Cron
	log  *logrus.Logger
}

// New creates a scheduler whose jobs recover from panics and log through log
func New(log *logrus.Logger) *Scheduler {
	logger := cron.PrintfLogger(log)
	return &Scheduler{
		cron: cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		log:  log,
	}
}

// AddStatementJob registers job on spec. An empty spec disables it.
func (s *Scheduler) AddStatementJob(spec string, job *StatementJob) error {
	if spec == "" {
		s.log.Info("Statement job disabled")
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), job.timeout)
		defer cancel()
		if _, err := job.Run(ctx); err != nil {
			s.log.WithError(err).Error("Statement job failed")
		}
	})
	if err != nil {
		return err
	}
	s.log.Infof("Statement job scheduled: %s", spec)
	return nil
}

// Start runs the scheduler in the background
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs until ctx is done
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("Scheduler stopped before running jobs finished")
	}
}

// Entries reports how many jobs are registered
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
