package campaign

import "github.com/orqestra/campaign-hub/internal/domain"

// transitionMatrix lists every allowed (role, from) → to edge. Anything not
// listed is rejected.
var transitionMatrix = map[domain.Role]map[domain.CampaignStatus][]domain.CampaignStatus{
	domain.RoleBusinessAnalyst: {
		domain.StatusDraft:         {domain.StatusCreativeStage},
		domain.StatusContentReview: {domain.StatusCampaignBuilding, domain.StatusContentAdjustment},
	},
	domain.RoleCreativeAnalyst: {
		domain.StatusCreativeStage:     {domain.StatusContentReview},
		domain.StatusContentAdjustment: {domain.StatusContentReview},
	},
	domain.RoleMarketingManager: {
		domain.StatusContentReview: {domain.StatusCampaignBuilding, domain.StatusContentAdjustment},
	},
	domain.RoleCampaignAnalyst: {
		domain.StatusCampaignBuilding: {domain.StatusCampaignPublished},
	},
}

// TransitionAllowed reports whether the matrix permits (role, from) → to.
func TransitionAllowed(role domain.Role, from, to domain.CampaignStatus) bool {
	for _, allowed := range transitionMatrix[role][from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// visibilityMatrix lists the statuses each role can see. A user can always
// read their own drafts regardless of this matrix.
var visibilityMatrix = map[domain.Role][]domain.CampaignStatus{
	domain.RoleBusinessAnalyst: domain.AllStatuses,
	domain.RoleCreativeAnalyst: {
		domain.StatusCreativeStage, domain.StatusContentReview, domain.StatusContentAdjustment,
	},
	domain.RoleCampaignAnalyst: {
		domain.StatusCampaignBuilding, domain.StatusCampaignPublished,
	},
	domain.RoleMarketingManager: {
		domain.StatusContentReview, domain.StatusContentAdjustment,
	},
}

// VisibleStatuses returns the statuses the role may list.
func VisibleStatuses(role domain.Role) []domain.CampaignStatus {
	return visibilityMatrix[role]
}

// Visible reports whether the actor may read the campaign: status in the
// role's visible set, or the actor's own draft.
func Visible(actor Actor, c *domain.Campaign) bool {
	if c.Status == domain.StatusDraft && c.CreatedBy == actor.ID {
		return true
	}
	for _, s := range VisibleStatuses(actor.Role) {
		if s == c.Status {
			return true
		}
	}
	return false
}

// contentEditable reports whether creative pieces may still change.
func contentEditable(status domain.CampaignStatus) bool {
	return status == domain.StatusCreativeStage || status == domain.StatusContentAdjustment
}

// submittable reports whether submit-for-review is accepted in this status.
// Creative analysts submit while working the content and may re-submit while
// the manager is reviewing.
func submittable(status domain.CampaignStatus) bool {
	return status == domain.StatusCreativeStage ||
		status == domain.StatusContentAdjustment ||
		status == domain.StatusContentReview
}
