package campaign_test

import (
	"context"
	"errors"
	"testing"

	"github.com/orqestra/campaign-hub/internal/domain"
	"github.com/orqestra/campaign-hub/internal/service/campaign"
)

var (
	ba    = campaign.Actor{ID: "u-ba", Email: "ana@orqestra.com.br", Role: domain.RoleBusinessAnalyst, IsActive: true}
	ca    = campaign.Actor{ID: "u-ca", Email: "bruno@orqestra.com.br", Role: domain.RoleCreativeAnalyst, IsActive: true}
	mm    = campaign.Actor{ID: "u-mm", Email: "carla@orqestra.com.br", Role: domain.RoleMarketingManager, IsActive: true}
	campA = campaign.Actor{ID: "u-cpa", Email: "diego@orqestra.com.br", Role: domain.RoleCampaignAnalyst, IsActive: true}
)

func mustDate(t *testing.T, s string) domain.Date {
	t.Helper()
	d, err := domain.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func draftCampaign(t *testing.T, channels ...domain.Channel) *domain.Campaign {
	t.Helper()
	if len(channels) == 0 {
		channels = []domain.Channel{domain.ChannelSMS}
	}
	c := &domain.Campaign{
		Name:           "Cartão Gold Q4",
		Category:       "acquisition",
		StartDate:      mustDate(t, "2026-10-01"),
		EndDate:        mustDate(t, "2026-12-15"),
		Channels:       channels,
		ExecutionModel: domain.ExecutionScheduled,
	}
	for _, ch := range channels {
		if ch == domain.ChannelApp {
			c.CommercialSpaces = []string{"home_banner"}
		}
	}
	return c
}

func mustCreate(t *testing.T, svc *campaign.Service, c *domain.Campaign) *domain.Campaign {
	t.Helper()
	created, err := svc.Create(context.Background(), ba, c)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return created
}

func mustTransition(t *testing.T, svc *campaign.Service, actor campaign.Actor, id string, to domain.CampaignStatus) {
	t.Helper()
	if _, err := svc.Transition(context.Background(), actor, id, to); err != nil {
		t.Fatalf("transition to %s as %s: %v", to, actor.Role, err)
	}
}

func TestHappyPathToPublished(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := campaign.NewService(repo)

	c := mustCreate(t, svc, draftCampaign(t))
	mustTransition(t, svc, ba, c.ID, domain.StatusCreativeStage)

	piece, err := svc.UpsertPiece(ctx, ca, &domain.CreativePiece{
		CampaignID: c.ID,
		PieceType:  domain.ChannelSMS,
		Body:       "Cartão Gold Orqestra: anuidade GRÁTIS no 1º ano! orqestra.com.br/gold",
	})
	if err != nil {
		t.Fatalf("upsert piece: %v", err)
	}

	err = svc.SubmitForReview(ctx, ca, c.ID, []campaign.ReviewSubmission{
		{PieceID: piece.ID, IAVerdict: domain.IAApproved},
	})
	if err != nil {
		t.Fatalf("submit for review: %v", err)
	}
	mustTransition(t, svc, ca, c.ID, domain.StatusContentReview)

	if _, err := svc.Review(ctx, mm, c.ID, campaign.ReviewInput{
		PieceID: piece.ID, Action: campaign.ActionApprove,
	}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	mustTransition(t, svc, ba, c.ID, domain.StatusCampaignBuilding)
	mustTransition(t, svc, campA, c.ID, domain.StatusCampaignPublished)

	got, err := svc.Get(ctx, ba, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusCampaignPublished {
		t.Errorf("final status = %s, want %s", got.Status, domain.StatusCampaignPublished)
	}

	statusEvents, _ := svc.StatusHistory(ctx, ba, c.ID)
	if len(statusEvents) != 6 {
		t.Errorf("status events = %d, want 6", len(statusEvents))
	}
	if first := statusEvents[0]; first.FromStatus != domain.StatusDraft || first.ToStatus != domain.StatusDraft {
		t.Errorf("first event = %s→%s, want draft creation row", first.FromStatus, first.ToStatus)
	}
	if last := statusEvents[len(statusEvents)-1]; last.ToStatus != got.Status {
		t.Errorf("last to_status = %s, campaign status = %s", last.ToStatus, got.Status)
	}
	reviewEvents, _ := svc.ReviewHistory(ctx, ba, c.ID)
	if len(reviewEvents) != 2 {
		t.Fatalf("review events = %d, want 2", len(reviewEvents))
	}
	if reviewEvents[0].Type != domain.ReviewSubmitted || reviewEvents[1].Type != domain.ReviewApproved {
		t.Errorf("review event types = %s, %s", reviewEvents[0].Type, reviewEvents[1].Type)
	}
}

func TestForbiddenTransitionLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := campaign.NewService(repo)

	c := mustCreate(t, svc, draftCampaign(t))

	_, err := svc.Transition(ctx, campA, c.ID, domain.StatusCampaignPublished)
	if !errors.Is(err, campaign.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}

	got, err := svc.Get(ctx, ba, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusDraft {
		t.Errorf("status changed to %s", got.Status)
	}
	// Only the creation row remains; the refused transition left no trace.
	events, _ := svc.StatusHistory(ctx, ba, c.ID)
	if len(events) != 1 {
		t.Fatalf("status events = %d, want 1", len(events))
	}
	if events[0].ToStatus != domain.StatusDraft {
		t.Errorf("to_status = %s, want %s", events[0].ToStatus, domain.StatusDraft)
	}
}

func TestCreateSeedsStatusLog(t *testing.T) {
	ctx := context.Background()
	svc := campaign.NewService(newMemRepo())

	c := mustCreate(t, svc, draftCampaign(t))

	events, err := svc.StatusHistory(ctx, ba, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("status events = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.FromStatus != domain.StatusDraft || ev.ToStatus != domain.StatusDraft {
		t.Errorf("event = %s to %s, want draft self-loop", ev.FromStatus, ev.ToStatus)
	}
	if ev.Actor != ba.Email {
		t.Errorf("actor = %s, want %s", ev.Actor, ba.Email)
	}
}

func TestCreateRequiresBusinessAnalyst(t *testing.T) {
	svc := campaign.NewService(newMemRepo())
	for _, actor := range []campaign.Actor{ca, mm, campA} {
		if _, err := svc.Create(context.Background(), actor, draftCampaign(t)); !errors.Is(err, campaign.ErrForbidden) {
			t.Errorf("%s: err = %v, want ErrForbidden", actor.Role, err)
		}
	}
}

func TestDraftInvisibleToOtherRoles(t *testing.T) {
	ctx := context.Background()
	svc := campaign.NewService(newMemRepo())
	c := mustCreate(t, svc, draftCampaign(t))

	for _, actor := range []campaign.Actor{ca, mm, campA} {
		if _, err := svc.Get(ctx, actor, c.ID); !errors.Is(err, campaign.ErrNotFound) {
			t.Errorf("%s: err = %v, want ErrNotFound", actor.Role, err)
		}
	}
	// The creator always reads their own draft.
	if _, err := svc.Get(ctx, ba, c.ID); err != nil {
		t.Errorf("creator read: %v", err)
	}
}

func TestListFollowsVisibilityMatrix(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := campaign.NewService(repo)

	mustCreate(t, svc, draftCampaign(t))
	c2 := mustCreate(t, svc, draftCampaign(t))
	mustTransition(t, svc, ba, c2.ID, domain.StatusCreativeStage)

	cases := []struct {
		actor campaign.Actor
		want  int
	}{
		{ba, 2},    // all statuses
		{ca, 1},    // creative stage only
		{mm, 0},    // nothing in review yet
		{campA, 0}, // nothing building or published
	}
	for _, tc := range cases {
		got, _, err := svc.List(ctx, tc.actor, "", 50, 0)
		if err != nil {
			t.Fatalf("%s: %v", tc.actor.Role, err)
		}
		if len(got) != tc.want {
			t.Errorf("%s: listed %d campaigns, want %d", tc.actor.Role, len(got), tc.want)
		}
	}
}

func TestUpdateOnlyInDraft(t *testing.T) {
	ctx := context.Background()
	svc := campaign.NewService(newMemRepo())
	c := mustCreate(t, svc, draftCampaign(t))

	name := "Cartão Gold Q4 v2"
	if err := svc.Update(ctx, ba, c.ID, campaign.UpdateFields{Name: &name}); err != nil {
		t.Fatalf("draft update: %v", err)
	}

	mustTransition(t, svc, ba, c.ID, domain.StatusCreativeStage)
	if err := svc.Update(ctx, ba, c.ID, campaign.UpdateFields{Name: &name}); !errors.Is(err, campaign.ErrImmutable) {
		t.Errorf("post-draft update err = %v, want ErrImmutable", err)
	}
}

func TestPieceRules(t *testing.T) {
	ctx := context.Background()
	svc := campaign.NewService(newMemRepo())
	c := mustCreate(t, svc, draftCampaign(t))
	mustTransition(t, svc, ba, c.ID, domain.StatusCreativeStage)

	sms := func() *domain.CreativePiece {
		return &domain.CreativePiece{CampaignID: c.ID, PieceType: domain.ChannelSMS, Body: "Oferta Gold"}
	}

	if _, err := svc.UpsertPiece(ctx, ba, sms()); !errors.Is(err, campaign.ErrForbidden) {
		t.Errorf("non-creative upsert err = %v, want ErrForbidden", err)
	}

	// Channel must be targeted by the briefing.
	push := &domain.CreativePiece{CampaignID: c.ID, PieceType: domain.ChannelPush, Title: "Oferta", Body: "Confira"}
	if _, err := svc.UpsertPiece(ctx, ca, push); err == nil {
		t.Error("expected error for untargeted channel")
	}

	p, err := svc.UpsertPiece(ctx, ca, sms())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Content freezes once the campaign leaves the creative stages.
	mustTransition(t, svc, ca, c.ID, domain.StatusContentReview)
	p.Body = "Oferta Platinum"
	if _, err := svc.UpsertPiece(ctx, ca, p); !errors.Is(err, campaign.ErrImmutable) {
		t.Errorf("frozen upsert err = %v, want ErrImmutable", err)
	}
}

func TestResubmitResetsHumanVerdict(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := campaign.NewService(repo)
	c := mustCreate(t, svc, draftCampaign(t))
	mustTransition(t, svc, ba, c.ID, domain.StatusCreativeStage)

	p, err := svc.UpsertPiece(ctx, ca, &domain.CreativePiece{
		CampaignID: c.ID, PieceType: domain.ChannelSMS, Body: "Oferta Gold",
	})
	if err != nil {
		t.Fatal(err)
	}

	subs := []campaign.ReviewSubmission{{PieceID: p.ID, IAVerdict: domain.IAApproved}}
	if err := svc.SubmitForReview(ctx, ca, c.ID, subs); err != nil {
		t.Fatal(err)
	}
	if err := svc.SubmitForReview(ctx, ca, c.ID, subs); err != nil {
		t.Fatal(err)
	}

	reviews, err := svc.ListReviews(ctx, ca, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(reviews) != 1 {
		t.Fatalf("reviews = %d, want 1 (upsert on unit key)", len(reviews))
	}
	if reviews[0].HumanVerdict != domain.HumanPending {
		t.Errorf("human verdict = %s, want pending", reviews[0].HumanVerdict)
	}

	events, _ := svc.ReviewHistory(ctx, ca, c.ID)
	var submitted int
	for _, ev := range events {
		if ev.Type == domain.ReviewSubmitted {
			submitted++
		}
	}
	if submitted != 2 {
		t.Errorf("SUBMITTED events = %d, want 2", submitted)
	}
}

func TestReviewActionRules(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, ia domain.IAVerdict) (*campaign.Service, string, string) {
		t.Helper()
		svc := campaign.NewService(newMemRepo())
		c := mustCreate(t, svc, draftCampaign(t))
		mustTransition(t, svc, ba, c.ID, domain.StatusCreativeStage)
		p, err := svc.UpsertPiece(ctx, ca, &domain.CreativePiece{
			CampaignID: c.ID, PieceType: domain.ChannelSMS, Body: "Oferta Gold",
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := svc.SubmitForReview(ctx, ca, c.ID, []campaign.ReviewSubmission{{PieceID: p.ID, IAVerdict: ia}}); err != nil {
			t.Fatal(err)
		}
		mustTransition(t, svc, ca, c.ID, domain.StatusContentReview)
		return svc, c.ID, p.ID
	}

	t.Run("reject requires an AI rejection to confirm", func(t *testing.T) {
		svc, cid, pid := setup(t, domain.IAApproved)
		if _, err := svc.Review(ctx, mm, cid, campaign.ReviewInput{PieceID: pid, Action: campaign.ActionReject}); err == nil {
			t.Error("reject on ia_verdict=approved must fail")
		}
	})

	t.Run("manually_reject cannot restate an AI rejection", func(t *testing.T) {
		svc, cid, pid := setup(t, domain.IARejected)
		_, err := svc.Review(ctx, mm, cid, campaign.ReviewInput{
			PieceID: pid, Action: campaign.ActionManuallyReject, Reason: "tom fora da marca",
		})
		if err == nil {
			t.Error("manually_reject on ia_verdict=rejected must fail")
		}
	})

	t.Run("manually_reject requires a reason", func(t *testing.T) {
		svc, cid, pid := setup(t, domain.IAApproved)
		if _, err := svc.Review(ctx, mm, cid, campaign.ReviewInput{PieceID: pid, Action: campaign.ActionManuallyReject}); err == nil {
			t.Error("manually_reject without reason must fail")
		}
	})

	t.Run("reject confirms and stamps the reviewer", func(t *testing.T) {
		svc, cid, pid := setup(t, domain.IARejected)
		r, err := svc.Review(ctx, mm, cid, campaign.ReviewInput{PieceID: pid, Action: campaign.ActionReject})
		if err != nil {
			t.Fatal(err)
		}
		if r.HumanVerdict != domain.HumanRejected {
			t.Errorf("human verdict = %s", r.HumanVerdict)
		}
		if r.ReviewedBy != mm.Email || r.ReviewedAt == nil {
			t.Error("reviewer not stamped")
		}
	})

	t.Run("only the manager reviews", func(t *testing.T) {
		svc, cid, pid := setup(t, domain.IAApproved)
		for _, actor := range []campaign.Actor{ba, ca, campA} {
			if _, err := svc.Review(ctx, actor, cid, campaign.ReviewInput{PieceID: pid, Action: campaign.ActionApprove}); !errors.Is(err, campaign.ErrForbidden) {
				t.Errorf("%s: err = %v, want ErrForbidden", actor.Role, err)
			}
		}
	})
}

func TestBuildingGatedOnFinalApproval(t *testing.T) {
	ctx := context.Background()
	svc := campaign.NewService(newMemRepo())
	c := mustCreate(t, svc, draftCampaign(t))
	mustTransition(t, svc, ba, c.ID, domain.StatusCreativeStage)

	p, err := svc.UpsertPiece(ctx, ca, &domain.CreativePiece{
		CampaignID: c.ID, PieceType: domain.ChannelSMS, Body: "Oferta Gold",
	})
	if err != nil {
		t.Fatal(err)
	}

	// A warning verdict is advisory: the unit is not finally approved until
	// the manager acts.
	if err := svc.SubmitForReview(ctx, ca, c.ID, []campaign.ReviewSubmission{{PieceID: p.ID, IAVerdict: domain.IAWarning}}); err != nil {
		t.Fatal(err)
	}
	mustTransition(t, svc, ca, c.ID, domain.StatusContentReview)

	if _, err := svc.Transition(ctx, ba, c.ID, domain.StatusCampaignBuilding); !errors.Is(err, campaign.ErrReviewsNotFinal) {
		t.Fatalf("err = %v, want ErrReviewsNotFinal", err)
	}

	if _, err := svc.Review(ctx, mm, c.ID, campaign.ReviewInput{PieceID: p.ID, Action: campaign.ActionApprove}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Transition(ctx, ba, c.ID, domain.StatusCampaignBuilding); err != nil {
		t.Fatalf("transition after approval: %v", err)
	}
}

func TestBuildingRequiresAtLeastOneReview(t *testing.T) {
	ctx := context.Background()
	svc := campaign.NewService(newMemRepo())
	c := mustCreate(t, svc, draftCampaign(t))
	mustTransition(t, svc, ba, c.ID, domain.StatusCreativeStage)
	if _, err := svc.UpsertPiece(ctx, ca, &domain.CreativePiece{
		CampaignID: c.ID, PieceType: domain.ChannelSMS, Body: "Oferta Gold",
	}); err != nil {
		t.Fatal(err)
	}
	mustTransition(t, svc, ca, c.ID, domain.StatusContentReview)

	if _, err := svc.Transition(ctx, ba, c.ID, domain.StatusCampaignBuilding); !errors.Is(err, campaign.ErrReviewsNotFinal) {
		t.Fatalf("err = %v, want ErrReviewsNotFinal", err)
	}
}

func TestAppSubmissionNeedsCommercialSpace(t *testing.T) {
	ctx := context.Background()
	svc := campaign.NewService(newMemRepo())
	c := mustCreate(t, svc, draftCampaign(t, domain.ChannelApp))
	mustTransition(t, svc, ba, c.ID, domain.StatusCreativeStage)

	p, err := svc.UpsertPiece(ctx, ca, &domain.CreativePiece{
		CampaignID:      c.ID,
		PieceType:       domain.ChannelApp,
		ImageObjectKeys: map[string]string{"home_banner": "campaigns/x/APP/home_banner/a.png"},
	})
	if err != nil {
		t.Fatal(err)
	}

	err = svc.SubmitForReview(ctx, ca, c.ID, []campaign.ReviewSubmission{{PieceID: p.ID, IAVerdict: domain.IAApproved}})
	if err == nil {
		t.Fatal("APP submission without commercial_space must fail")
	}

	err = svc.SubmitForReview(ctx, ca, c.ID, []campaign.ReviewSubmission{
		{PieceID: p.ID, CommercialSpace: "home_banner", IAVerdict: domain.IAApproved},
	})
	if err != nil {
		t.Fatalf("APP submission with space: %v", err)
	}

	err = svc.SubmitForReview(ctx, ca, c.ID, []campaign.ReviewSubmission{
		{PieceID: p.ID, CommercialSpace: "push_inbox", IAVerdict: domain.IAApproved},
	})
	if err == nil {
		t.Fatal("APP submission for a space without an image must fail")
	}
}

func TestCommentsInheritVisibility(t *testing.T) {
	ctx := context.Background()
	svc := campaign.NewService(newMemRepo())
	c := mustCreate(t, svc, draftCampaign(t))

	if _, err := svc.AddComment(ctx, ba, c.ID, "validar briefing com o time"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddComment(ctx, ca, c.ID, "não deveria enxergar"); !errors.Is(err, campaign.ErrNotFound) {
		t.Errorf("comment on invisible campaign err = %v, want ErrNotFound", err)
	}

	comments, err := svc.ListComments(ctx, ba, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 1 {
		t.Errorf("comments = %d, want 1", len(comments))
	}
}
