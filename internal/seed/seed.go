package seed

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradeflow/internal/models"
)

// Admin describes the bootstrap administrator account.
type Admin struct {
	OktaID string
	Email  string
	Name   string
}

var Permissions = []models.Permission{
	{Key: "ui.analyst_portal", Category: models.CategoryUI, DisplayName: "Analyst Portal Access"},
	{Key: "ui.pm_portal", Category: models.CategoryUI, DisplayName: "PM Portal Access"},
	{Key: "ui.admin_portal", Category: models.CategoryUI, DisplayName: "Admin Portal Access"},
	{Key: models.PermCreateRecommendation, Category: models.CategoryFunctional, DisplayName: "Create Trade Recommendations"},
	{Key: models.PermEditOwnDrafts, Category: models.CategoryFunctional, DisplayName: "Edit Own Drafts"},
	{Key: models.PermDeleteOwnDrafts, Category: models.CategoryFunctional, DisplayName: "Delete Own Drafts"},
	{Key: models.PermViewOwnHistory, Category: models.CategoryFunctional, DisplayName: "View Own History"},
	{Key: models.PermViewAllRecommendations, Category: models.CategoryFunctional, DisplayName: "View All Recommendations"},
	{Key: models.PermApproveRecommendations, Category: models.CategoryBusiness, DisplayName: "Approve Recommendations"},
	{Key: models.PermCreateTickets, Category: models.CategoryBusiness, DisplayName: "Create Trade Tickets"},
	{Key: models.PermSubmitToCRD, Category: models.CategoryBusiness, DisplayName: "Submit to CRD"},
	{Key: "market.view_prices", Category: models.CategoryFunctional, DisplayName: "View Prices"},
	{Key: models.PermUserManagement, Category: models.CategoryAdmin, DisplayName: "User Management"},
	{Key: models.PermSystemConfig, Category: models.CategoryAdmin, DisplayName: "System Configuration"},
	{Key: models.PermViewAuditLogs, Category: models.CategoryAdmin, DisplayName: "View Audit Logs"},
}

var roleDescriptions = map[string]string{
	models.RoleAnalyst:          "Financial analysts who submit trade recommendations",
	models.RolePortfolioManager: "Portfolio managers who approve trades and manage portfolios",
	models.RoleAdministrator:    "System administrators with full access",
}

// RoleGrants maps roles to their default permissions. Administrator receives every permission.
var RoleGrants = map[string][]string{
	models.RoleAnalyst: {
		"ui.analyst_portal",
		models.PermCreateRecommendation,
		models.PermEditOwnDrafts,
		models.PermDeleteOwnDrafts,
		models.PermViewOwnHistory,
		"market.view_prices",
	},
	models.RolePortfolioManager: {
		"ui.pm_portal",
		models.PermViewAllRecommendations,
		models.PermApproveRecommendations,
		models.PermCreateTickets,
		models.PermSubmitToCRD,
		"market.view_prices",
	},
}

var Funds = []models.Fund{
	{Code: "OPM", Name: "OrbiMed Private Investments"},
	{Code: "GEN", Name: "OrbiMed Genesis Fund"},
	{Code: "WWH", Name: "OrbiMed Worldwide Health Fund"},
	{Code: "BIOG", Name: "OrbiMed Biotech Opportunities Fund"},
}

var Strategies = []models.Strategy{
	{Name: "M&A Speculation", IsSystemDefault: true},
	{Name: "Clinical Catalyst", IsSystemDefault: true},
	{Name: "Drug/Product Launch", IsSystemDefault: true},
	{Name: "Valuation", IsSystemDefault: true},
	{Name: "Technical Analysis", IsSystemDefault: true},
	{Name: "Commercial Outlook", IsSystemDefault: true},
	{Name: "Macro", IsSystemDefault: true},
	{Name: "Political Trade", IsSystemDefault: true},
	{Name: "Earnings Beat/Miss", IsSystemDefault: true},
	{Name: "PM Rebalance", IsSystemDefault: true},
	{Name: "Thematic Baskets", IsSystemDefault: true},
	{Name: "Other", IsSystemDefault: true},
}

// ReferenceData seeds roles, permissions, role grants, funds and strategies. Safe to run
// repeatedly.
func ReferenceData(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		roleIDs := map[string]int64{}
		for _, name := range []string{models.RoleAnalyst, models.RolePortfolioManager, models.RoleAdministrator} {
			role := models.Role{Name: name, Description: roleDescriptions[name], IsActive: true}
			if err := tx.Where("name = ?", name).FirstOrCreate(&role).Error; err != nil {
				return fmt.Errorf("role %s: %w", name, err)
			}
			roleIDs[name] = role.ID
		}

		permIDs := map[string]int64{}
		for _, p := range Permissions {
			tmp := p
			tmp.IsActive = true
			if err := tx.Where("permission_key = ?", tmp.Key).FirstOrCreate(&tmp).Error; err != nil {
				return fmt.Errorf("permission %s: %w", p.Key, err)
			}
			permIDs[tmp.Key] = tmp.ID
		}

		ensureRolePerm := func(roleID, permID int64) error {
			return tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.RolePermission{RoleID: roleID, PermissionID: permID, IsGranted: true}).Error
		}
		for role, keys := range RoleGrants {
			for _, k := range keys {
				if err := ensureRolePerm(roleIDs[role], permIDs[k]); err != nil {
					return err
				}
			}
		}
		for _, pid := range permIDs {
			if err := ensureRolePerm(roleIDs[models.RoleAdministrator], pid); err != nil {
				return err
			}
		}

		for _, f := range Funds {
			tmp := f
			tmp.IsActive = true
			if err := tx.Where("code = ?", tmp.Code).FirstOrCreate(&tmp).Error; err != nil {
				return fmt.Errorf("fund %s: %w", f.Code, err)
			}
		}
		for _, s := range Strategies {
			tmp := s
			tmp.IsActive = true
			if err := tx.Where("name = ?", tmp.Name).FirstOrCreate(&tmp).Error; err != nil {
				return fmt.Errorf("strategy %s: %w", s.Name, err)
			}
		}
		return nil
	})
}

// FirstSetup seeds reference data and ensures the bootstrap administrator exists.
func FirstSetup(db *gorm.DB, admin Admin, log *zap.Logger) error {
	if err := ReferenceData(db); err != nil {
		return err
	}

	var role models.Role
	if err := db.Where("name = ?", models.RoleAdministrator).First(&role).Error; err != nil {
		return err
	}
	user := models.User{
		OktaID:   admin.OktaID,
		Email:    admin.Email,
		Name:     admin.Name,
		RoleID:   role.ID,
		IsActive: true,
	}
	if err := db.Where("okta_id = ?", admin.OktaID).FirstOrCreate(&user).Error; err != nil {
		return err
	}

	if log != nil {
		log.Info("seed ok",
			zap.String("admin", admin.Email),
			zap.Int("permissions", len(Permissions)),
			zap.Int("funds", len(Funds)),
			zap.Int("strategies", len(Strategies)),
		)
	}
	return nil
}
