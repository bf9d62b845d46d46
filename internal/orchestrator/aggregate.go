package orchestrator

import (
	"fmt"
	"strings"

	"github.com/orqestra/campaign-hub/internal/validator/brand"
	"github.com/orqestra/campaign-hub/internal/validator/legal"
	"github.com/orqestra/campaign-hub/internal/validator/specs"
)

// stageOutcome carries the fan-out results into aggregation.
type stageOutcome struct {
	specs    *specs.Result
	specsErr error
	brand    *brand.Result
	brandErr error
	legal    *legal.Result
	legalErr error
}

// earlyFail is the terminal shape for failures before the fan-out. The
// verdict is always a rejection with human review.
func earlyFail(check *ChannelCheck, stage, reason string, stages []string) *Response {
	if stages == nil {
		stages = []string{}
	}
	return &Response{
		ValidationResult:      check,
		RequiresHumanApproval: true,
		HumanApprovalReason:   reason,
		FailureStage:          stage,
		StagesCompleted:       stages,
		FinalVerdict: &FinalVerdict{
			Decision:            legal.DecisionRejected,
			RequiresHumanReview: true,
			Summary:             reason,
			Sources:             []string{},
		},
	}
}

// aggregate combines the three partial results without further I/O. A
// validator error marks its stage as the failure stage and forces a
// rejection; completed validators still report.
func aggregate(check *ChannelCheck, stages []string, out stageOutcome) *Response {
	resp := &Response{
		ValidationResult: check,
		StagesCompleted:  stages,
	}

	failureStage := ""
	var failureReason string
	record := func(stage string, err error) {
		if err == nil {
			resp.StagesCompleted = append(resp.StagesCompleted, stage)
			return
		}
		if failureStage == "" {
			failureStage = stage
			failureReason = err.Error()
		}
	}
	record(StageValidateSpecs, out.specsErr)
	record(StageValidateBrand, out.brandErr)
	record(StageValidateLegal, out.legalErr)

	resp.SpecsResult = out.specs
	resp.BrandingResult = out.brand
	resp.ComplianceResult = out.legal

	verdict := &FinalVerdict{
		Specs:    out.specs,
		Branding: out.brand,
		Legal:    out.legal,
		Sources:  []string{},
	}

	var lines []string
	if out.specs != nil && !out.specs.Valid {
		lines = append(lines, "Especificações técnicas: "+strings.Join(out.specs.Errors, "; "))
	}
	if out.brand != nil && !out.brand.Compliant {
		lines = append(lines, fmt.Sprintf("Marca: %d violações (score %d)",
			out.brand.Summary.Total, out.brand.Score))
	}
	if out.legal != nil {
		verdict.Sources = out.legal.Sources
		verdict.RequiresHumanReview = out.legal.RequiresHumanReview
		if out.legal.Decision != legal.DecisionApproved {
			lines = append(lines, "Jurídico: "+out.legal.Summary)
		}
	}

	if failureStage != "" {
		resp.FailureStage = failureStage
		verdict.Decision = legal.DecisionRejected
		verdict.RequiresHumanReview = true
		lines = append(lines, "Falha na etapa "+failureStage+": "+failureReason)
	} else if out.specs.Valid && out.brand.Compliant && out.legal.Decision == legal.DecisionApproved {
		verdict.Decision = legal.DecisionApproved
	} else {
		verdict.Decision = legal.DecisionRejected
	}

	if len(lines) == 0 {
		verdict.Summary = "Conteúdo aprovado em todas as validações."
	} else {
		verdict.Summary = strings.Join(lines, "\n")
	}

	resp.RequiresHumanApproval = verdict.RequiresHumanReview
	if resp.RequiresHumanApproval && resp.HumanApprovalReason == "" {
		resp.HumanApprovalReason = verdict.Summary
	}
	resp.FinalVerdict = verdict
	return resp
}
