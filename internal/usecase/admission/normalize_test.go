package admission

import (
	"testing"

	"tg-memes-bot/internal/domain"
)

func TestNormalizeClassifiesImage(t *testing.T) {
	sub := domain.RawSubmission{ID: "abc", Title: "мем", URL: "https://i.redd.it/pic.jpg"}
	cand, verdict := Normalize(sub)
	if !verdict.Admit {
		t.Fatalf("не ожидали отказ: %s", verdict.Reason)
	}
	if cand.Kind != domain.MediaImage {
		t.Fatalf("ожидали image, получили %s", cand.Kind)
	}
	if cand.ID != "abc" || cand.URL != sub.URL {
		t.Fatalf("кандидат потерял поля поста")
	}
}

func TestNormalizeClassifiesVideo(t *testing.T) {
	urls := []string{
		"https://v.redd.it/xyz",
		"https://example.com/clip.mp4",
		"https://i.imgur.com/a.gif",
		"https://i.imgur.com/a.gifv",
	}
	for _, url := range urls {
		cand, verdict := Normalize(domain.RawSubmission{ID: "v1", URL: url})
		if !verdict.Admit {
			t.Fatalf("%s: не ожидали отказ: %s", url, verdict.Reason)
		}
		if cand.Kind != domain.MediaVideo {
			t.Fatalf("%s: ожидали video, получили %s", url, cand.Kind)
		}
	}
}

func TestNormalizeRejectsStickied(t *testing.T) {
	_, verdict := Normalize(domain.RawSubmission{ID: "s", URL: "https://i.redd.it/pic.png", Stickied: true})
	if verdict.Admit {
		t.Fatalf("ожидали отказ закреплённого поста")
	}
	if verdict.Reason != "stickied" {
		t.Fatalf("ожидали причину stickied, получили %s", verdict.Reason)
	}
	if verdict.Kind != domain.RejectClassification {
		t.Fatalf("ожидали classification, получили %s", verdict.Kind)
	}
}

func TestNormalizeRejectsSelfPost(t *testing.T) {
	_, verdict := Normalize(domain.RawSubmission{ID: "s", SelfText: true, URL: "https://reddit.com/r/memes/comments/1"})
	if verdict.Admit || verdict.Reason != "self_post" {
		t.Fatalf("ожидали отказ self_post, получили %+v", verdict)
	}
	_, verdict = Normalize(domain.RawSubmission{ID: "s", URL: "   "})
	if verdict.Admit || verdict.Reason != "self_post" {
		t.Fatalf("пустой URL должен считаться текстовым постом, получили %+v", verdict)
	}
}

func TestNormalizeRejectsGallery(t *testing.T) {
	_, verdict := Normalize(domain.RawSubmission{ID: "g", URL: "https://www.reddit.com/gallery/abc", Gallery: true})
	if verdict.Admit || verdict.Reason != "gallery" {
		t.Fatalf("ожидали отказ gallery, получили %+v", verdict)
	}
	_, verdict = Normalize(domain.RawSubmission{ID: "g2", URL: "https://www.reddit.com/gallery/abc"})
	if verdict.Admit || verdict.Reason != "gallery" {
		t.Fatalf("ссылка на галерею должна отсекаться и без флага, получили %+v", verdict)
	}
}

func TestNormalizeRejectsUnsupportedMedia(t *testing.T) {
	_, verdict := Normalize(domain.RawSubmission{ID: "u", URL: "https://example.com/page.html"})
	if verdict.Admit {
		t.Fatalf("ожидали отказ неизвестного медиа")
	}
	if verdict.Reason != "unsupported_media" {
		t.Fatalf("ожидали unsupported_media, получили %s", verdict.Reason)
	}
}

func TestNormalizeOrderOfChecks(t *testing.T) {
	// Закреплённый текстовый пост отсекается по stickied, а не по self_post.
	_, verdict := Normalize(domain.RawSubmission{ID: "o", Stickied: true, SelfText: true})
	if verdict.Reason != "stickied" {
		t.Fatalf("ожидали stickied первым, получили %s", verdict.Reason)
	}
}
