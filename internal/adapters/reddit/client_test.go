package reddit

import (
	"testing"
)

const sampleListing = `{
  "kind": "Listing",
  "data": {
    "children": [
      {
        "kind": "t3",
        "data": {
          "id": "abc1",
          "title": "Обычный мем",
          "url": "https://i.redd.it/pic.jpg",
          "subreddit": "memes",
          "score": 1500,
          "is_self": false,
          "stickied": false,
          "created_utc": 1700000000
        }
      },
      {
        "kind": "t3",
        "data": {
          "id": "abc2",
          "title": "Закреплённый пост",
          "url": "https://www.reddit.com/r/memes/comments/abc2",
          "subreddit": "memes",
          "score": 900,
          "is_self": true,
          "stickied": true,
          "created_utc": 1700000100
        }
      },
      {
        "kind": "t3",
        "data": {
          "id": "abc3",
          "title": "Галерея",
          "url": "https://www.reddit.com/gallery/abc3",
          "subreddit": "memes",
          "score": 300,
          "is_gallery": true,
          "created_utc": 1700000200
        }
      }
    ]
  }
}`

func TestParseListing(t *testing.T) {
	subs, err := parseListing([]byte(sampleListing))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(subs) != 3 {
		t.Fatalf("ожидали 3 поста, получили %d", len(subs))
	}

	first := subs[0]
	if first.ID != "abc1" || first.URL != "https://i.redd.it/pic.jpg" || first.Score != 1500 {
		t.Fatalf("первый пост разобран неверно: %+v", first)
	}
	if first.SelfText || first.Stickied || first.Gallery {
		t.Fatalf("флаги первого поста должны быть сняты: %+v", first)
	}
	if first.CreatedAt.Unix() != 1700000000 {
		t.Fatalf("неверное время создания: %v", first.CreatedAt)
	}

	if !subs[1].SelfText || !subs[1].Stickied {
		t.Fatalf("текстовый закреплённый пост должен сохранять флаги: %+v", subs[1])
	}
	if !subs[2].Gallery {
		t.Fatalf("галерея должна сохранять флаг: %+v", subs[2])
	}
}

func TestParseListingBrokenJSON(t *testing.T) {
	if _, err := parseListing([]byte(`{"data": [`)); err == nil {
		t.Fatalf("ожидали ошибку разбора")
	}
}

func TestParseListingEmpty(t *testing.T) {
	subs, err := parseListing([]byte(`{"data": {"children": []}}`))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("ожидали пустой срез, получили %d", len(subs))
	}
}
