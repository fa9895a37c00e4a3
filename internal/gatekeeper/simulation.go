package gatekeeper

import "github.com/anthroposcity/actgate/internal/models"

const (
	simulatedUserID = "user_dev_simulated"
	simulatedWallet = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
)

// simulatedIdentity is served in development when DEV_SIMULATE_STATUS is set.
func (g *Gatekeeper) simulatedIdentity() *models.UserIdentity {
	identity := &models.UserIdentity{
		UserID: simulatedUserID,
		Status: models.StatusMember,
	}
	if models.Status(g.config.DevSimulateStatus) == models.StatusPublisher {
		identity.Status = models.StatusPublisher
		identity.ACTVerification = models.ACTVerification{
			Verified:      true,
			WalletAddress: simulatedWallet,
			Network:       models.NetworkArbitrum,
			Token:         models.TokenACT,
		}
	}
	g.logger.Debug("Serving simulated identity", "status", identity.Status)
	return identity
}

func (g *Gatekeeper) simulatedVerification() *models.VerificationOutcome {
	usd := g.config.MinUSDThreshold * 2
	g.logger.Debug("Serving simulated verification")
	return &models.VerificationOutcome{
		Success:       true,
		Message:       "Verification successful (simulated).",
		WalletAddress: simulatedWallet,
		Balance:       "1000",
		USDValue:      &usd,
	}
}
