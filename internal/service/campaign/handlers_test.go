package campaign_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/orqestra/campaign-hub/internal/domain"
	"github.com/orqestra/campaign-hub/internal/pkg/headerenc"
	"github.com/orqestra/campaign-hub/internal/service/campaign"
	"github.com/orqestra/campaign-hub/internal/storage"
)

func newTestServer(t *testing.T) (*httptest.Server, *campaign.Service, *storage.MemStore) {
	t.Helper()
	svc := campaign.NewService(newMemRepo())
	store := storage.NewMemStore()
	h := campaign.NewHandler(svc, store, 1<<20)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv, svc, store
}

func asActor(req *http.Request, a campaign.Actor) {
	req.Header.Set("X-User-Id", headerenc.Encode(a.ID))
	req.Header.Set("X-User-Email", headerenc.Encode(a.Email))
	req.Header.Set("X-User-Role", headerenc.Encode(string(a.Role)))
	req.Header.Set("X-User-Is-Active", fmt.Sprintf("%t", a.IsActive))
}

func doJSON(t *testing.T, a campaign.Actor, method, url string, body interface{}) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	asActor(req, a)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatal(err)
	}
}

func TestCreateAndGetOverHTTP(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doJSON(t, ba, http.MethodPost, srv.URL+"/api/campaigns", draftCampaign(t))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created domain.Campaign
	decodeBody(t, resp, &created)
	if created.ID == "" || created.Status != domain.StatusDraft {
		t.Fatalf("created = %+v", created)
	}

	resp = doJSON(t, ba, http.MethodGet, srv.URL+"/api/campaigns/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var got domain.Campaign
	decodeBody(t, resp, &got)
	if got.Name != "Cartão Gold Q4" {
		t.Errorf("name = %q", got.Name)
	}
}

func TestMissingIdentityHeadersIs401(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/campaigns")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestForbiddenTransitionOverHTTP(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doJSON(t, ba, http.MethodPost, srv.URL+"/api/campaigns", draftCampaign(t))
	var created domain.Campaign
	decodeBody(t, resp, &created)

	resp = doJSON(t, campA, http.MethodPost, srv.URL+"/api/campaigns/"+created.ID+"/transition",
		map[string]string{"status": string(domain.StatusCampaignPublished)})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}

	resp = doJSON(t, ba, http.MethodGet, srv.URL+"/api/campaigns/"+created.ID+"/status-history", nil)
	var history struct {
		Events []domain.CampaignStatusEvent `json:"events"`
	}
	decodeBody(t, resp, &history)
	if len(history.Events) != 1 {
		t.Errorf("events = %d, want 1 (creation row only)", len(history.Events))
	}
}

func TestUpdateDecodesBriefingFields(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doJSON(t, ba, http.MethodPost, srv.URL+"/api/campaigns", draftCampaign(t))
	var created domain.Campaign
	decodeBody(t, resp, &created)

	resp = doJSON(t, ba, http.MethodPut, srv.URL+"/api/campaigns/"+created.ID,
		map[string]interface{}{"name": "Cartão Platinum Q4", "estimated_impact_volume": "1234.56"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("update status = %d", resp.StatusCode)
	}

	resp = doJSON(t, ba, http.MethodGet, srv.URL+"/api/campaigns/"+created.ID, nil)
	var got domain.Campaign
	decodeBody(t, resp, &got)
	if got.Name != "Cartão Platinum Q4" {
		t.Errorf("name = %q", got.Name)
	}
	if got.EstimatedImpact.String() != "1234.56" {
		t.Errorf("estimated impact = %s", got.EstimatedImpact)
	}
}

func TestSMSPieceOverHTTP(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doJSON(t, ba, http.MethodPost, srv.URL+"/api/campaigns", draftCampaign(t))
	var created domain.Campaign
	decodeBody(t, resp, &created)
	resp = doJSON(t, ba, http.MethodPost, srv.URL+"/api/campaigns/"+created.ID+"/transition",
		map[string]string{"status": string(domain.StatusCreativeStage)})
	resp.Body.Close()

	resp = doJSON(t, ca, http.MethodPost, srv.URL+"/api/campaigns/"+created.ID+"/creative-pieces",
		map[string]string{"piece_type": "SMS", "body": "Cartão Gold Orqestra: anuidade GRÁTIS no 1º ano! orqestra.com.br/gold"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("piece status = %d", resp.StatusCode)
	}
	var piece domain.CreativePiece
	decodeBody(t, resp, &piece)

	resp = doJSON(t, ca, http.MethodGet,
		srv.URL+"/api/campaigns/"+created.ID+"/creative-pieces/"+piece.ID+"/content", nil)
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), "anuidade GRÁTIS") {
		t.Errorf("content = %q", buf.String())
	}
}

func TestUploadAndContentDataURL(t *testing.T) {
	srv, _, store := newTestServer(t)

	draft := draftCampaign(t, domain.ChannelApp)
	resp := doJSON(t, ba, http.MethodPost, srv.URL+"/api/campaigns", draft)
	var created domain.Campaign
	decodeBody(t, resp, &created)
	resp = doJSON(t, ba, http.MethodPost, srv.URL+"/api/campaigns/"+created.ID+"/transition",
		map[string]string{"status": string(domain.StatusCreativeStage)})
	resp.Body.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("piece_type", "APP")
	mw.WriteField("commercial_space", "home_banner")
	part, _ := mw.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="file"; filename="banner.png"`},
		"Content-Type":        {"image/png"},
	})
	part.Write([]byte("fake-png-bytes"))
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost,
		srv.URL+"/api/campaigns/"+created.ID+"/creative-pieces/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	asActor(req, ca)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	var piece domain.CreativePiece
	decodeBody(t, resp, &piece)
	key, ok := piece.ImageObjectKeys["home_banner"]
	if !ok || !strings.HasPrefix(key, "campaigns/"+created.ID+"/APP/home_banner/") {
		t.Fatalf("image keys = %v", piece.ImageObjectKeys)
	}
	if store.Len() != 1 {
		t.Fatalf("stored objects = %d", store.Len())
	}

	resp = doJSON(t, ca, http.MethodGet,
		srv.URL+"/api/campaigns/"+created.ID+"/creative-pieces/"+piece.ID+"/content?commercial_space=home_banner", nil)
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	if !strings.HasPrefix(buf.String(), "data:image/png;base64,") {
		t.Errorf("content = %q", buf.String())
	}

	resp = doJSON(t, ca, http.MethodGet,
		srv.URL+"/api/campaigns/"+created.ID+"/creative-pieces/"+piece.ID+"/content?commercial_space=other", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown space status = %d, want 404", resp.StatusCode)
	}
}

func TestSubmitAndReviewOverHTTP(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doJSON(t, ba, http.MethodPost, srv.URL+"/api/campaigns", draftCampaign(t))
	var created domain.Campaign
	decodeBody(t, resp, &created)
	doJSON(t, ba, http.MethodPost, srv.URL+"/api/campaigns/"+created.ID+"/transition",
		map[string]string{"status": string(domain.StatusCreativeStage)}).Body.Close()

	resp = doJSON(t, ca, http.MethodPost, srv.URL+"/api/campaigns/"+created.ID+"/creative-pieces",
		map[string]string{"piece_type": "SMS", "body": "Oferta exclusiva"})
	var piece domain.CreativePiece
	decodeBody(t, resp, &piece)

	resp = doJSON(t, ca, http.MethodPost, srv.URL+"/api/campaigns/"+created.ID+"/submit-for-review",
		map[string]interface{}{"submissions": []map[string]string{{"piece_id": piece.ID, "ia_verdict": "approved"}}})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("submit status = %d", resp.StatusCode)
	}

	doJSON(t, ca, http.MethodPost, srv.URL+"/api/campaigns/"+created.ID+"/transition",
		map[string]string{"status": string(domain.StatusContentReview)}).Body.Close()

	resp = doJSON(t, mm, http.MethodPost, srv.URL+"/api/campaigns/"+created.ID+"/review",
		map[string]string{"piece_id": piece.ID, "action": "approve"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("review status = %d", resp.StatusCode)
	}
	var review domain.PieceReview
	decodeBody(t, resp, &review)
	if review.HumanVerdict != domain.HumanApproved || review.ReviewedBy != mm.Email {
		t.Errorf("review = %+v", review)
	}

	resp = doJSON(t, mm, http.MethodGet, srv.URL+"/api/campaigns/"+created.ID+"/review-history", nil)
	var history struct {
		Events []domain.PieceReviewEvent `json:"events"`
	}
	decodeBody(t, resp, &history)
	if len(history.Events) != 2 {
		t.Errorf("review events = %d, want 2", len(history.Events))
	}
}

func TestManagerReviewNeedsVisibleCampaign(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doJSON(t, ba, http.MethodPost, srv.URL+"/api/campaigns", draftCampaign(t))
	var created domain.Campaign
	decodeBody(t, resp, &created)
	doJSON(t, ba, http.MethodPost, srv.URL+"/api/campaigns/"+created.ID+"/transition",
		map[string]string{"status": string(domain.StatusCreativeStage)}).Body.Close()

	resp = doJSON(t, ca, http.MethodPost, srv.URL+"/api/campaigns/"+created.ID+"/creative-pieces",
		map[string]string{"piece_type": "SMS", "body": "Oferta"})
	var piece domain.CreativePiece
	decodeBody(t, resp, &piece)

	// Managers cannot see creative-stage campaigns; the write reads as missing.
	resp = doJSON(t, mm, http.MethodPost, srv.URL+"/api/campaigns/"+created.ID+"/review",
		map[string]string{"piece_id": piece.ID, "action": "approve"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCommentRoundTrip(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doJSON(t, ba, http.MethodPost, srv.URL+"/api/campaigns", draftCampaign(t))
	var created domain.Campaign
	decodeBody(t, resp, &created)

	resp = doJSON(t, ba, http.MethodPost, srv.URL+"/api/campaigns/"+created.ID+"/comments",
		map[string]string{"body": "ajustar a data de término"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("comment status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, ba, http.MethodGet, srv.URL+"/api/campaigns/"+created.ID+"/comments", nil)
	var out struct {
		Comments []domain.Comment `json:"comments"`
	}
	decodeBody(t, resp, &out)
	if len(out.Comments) != 1 || out.Comments[0].Author != ba.Email {
		t.Errorf("comments = %+v", out.Comments)
	}
}
