package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ArowuTest/agriclaim-backend/internal/metrics"
	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"github.com/ArowuTest/agriclaim-backend/internal/utils"
	"github.com/ArowuTest/agriclaim-backend/pkg/smsgateway"
)

// Notifier tells a farmer that their claim moved.
type Notifier interface {
	ClaimChanged(ctx context.Context, claim *models.Claim)
}

// Compile-time check to ensure NotificationService implements Notifier
var _ Notifier = (*NotificationService)(nil)

// NotificationService sends farmer SMS through the configured gateway.
// Sends run in the background and never fail the caller.
type NotificationService struct {
	gateway smsgateway.Gateway
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(gateway smsgateway.Gateway) *NotificationService {
	return &NotificationService{
		gateway: gateway,
		timeout: 30 * time.Second,
	}
}

// ClaimChanged queues an SMS describing the claim's current status.
func (s *NotificationService) ClaimChanged(ctx context.Context, claim *models.Claim) {
	if s == nil || s.gateway == nil || claim == nil || claim.FarmerContact == "" {
		return
	}
	msisdn := utils.NormalizeMSISDN(claim.FarmerContact)
	content := ClaimMessage(claim)
	claimID := claim.ID

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		messageID, err := s.gateway.SendSMS(sendCtx, msisdn, content)
		if err != nil {
			metrics.SMSSent.WithLabelValues("failed").Inc()
			slog.Warn("Failed to send claim SMS", "error", err, "claimId", claimID)
			return
		}
		metrics.SMSSent.WithLabelValues("sent").Inc()
		slog.Info("Claim SMS sent", "claimId", claimID, "messageId", messageID)
	}()
}

// Wait blocks until every queued SMS has been attempted.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

// ClaimMessage renders the SMS text for a claim's current status.
func ClaimMessage(claim *models.Claim) string {
	greeting := "Dear farmer"
	if claim.FarmerName != "" {
		greeting = "Dear " + claim.FarmerName
	}
	switch claim.Status {
	case models.StatusSubmitted:
		return fmt.Sprintf("%s, your crop loss claim %s has been received.", greeting, claim.ID)
	case models.StatusPaymentApproved:
		return fmt.Sprintf("%s, payment of Rs. %.2f for claim %s has been approved.", greeting, claim.Compensation(), claim.ID)
	}
	if claim.Status.IsRejected() {
		return fmt.Sprintf("%s, your claim %s was %s.", greeting, claim.ID, claim.Status.Label())
	}
	return fmt.Sprintf("%s, your claim %s is now %s.", greeting, claim.ID, claim.Status.Label())
}
