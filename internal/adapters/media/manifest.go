package media

import (
	"encoding/xml"
	"errors"
	"fmt"
)

// DASH-манифест, который v.redd.it отдаёт по пути /DASHPlaylist.mpd.
// Разбираются только нужные поля: наборы адаптации и их представления.
type dashManifest struct {
	XMLName xml.Name `xml:"MPD"`
	Period  struct {
		AdaptationSets []adaptationSet `xml:"AdaptationSet"`
	} `xml:"Period"`
}

type adaptationSet struct {
	ContentType     string           `xml:"contentType,attr"`
	Representations []representation `xml:"Representation"`
}

type representation struct {
	BaseURL   string `xml:"BaseURL"`
	Height    int    `xml:"height,attr"`
	Bandwidth int    `xml:"bandwidth,attr"`
}

var errNoVideoStream = errors.New("в манифесте нет видеопотока")

// parseManifest разбирает манифест и возвращает ссылки на лучший видеопоток
// и, если есть, лучший аудиопоток. baseURL — ссылка поста без завершающего
// слэша.
func parseManifest(baseURL string, payload []byte) (videoURL, audioURL string, err error) {
	var doc dashManifest
	if err := xml.Unmarshal(payload, &doc); err != nil {
		return "", "", fmt.Errorf("разбор манифеста: %w", err)
	}

	var video, audio *representation
	for i := range doc.Period.AdaptationSets {
		set := &doc.Period.AdaptationSets[i]
		switch {
		case set.ContentType == "video" || (set.ContentType == "" && hasHeights(set)):
			video = pickBest(set.Representations, video)
		case set.ContentType == "audio":
			audio = pickBest(set.Representations, audio)
		}
	}

	if video == nil {
		return "", "", errNoVideoStream
	}

	videoURL = baseURL + "/" + video.BaseURL
	if audio != nil {
		audioURL = baseURL + "/" + audio.BaseURL
	}
	return videoURL, audioURL, nil
}

func hasHeights(set *adaptationSet) bool {
	for _, rep := range set.Representations {
		if rep.Height > 0 {
			return true
		}
	}
	return false
}

// pickBest выбирает представление с наибольшим разрешением, при равенстве —
// с наибольшим битрейтом.
func pickBest(reps []representation, current *representation) *representation {
	best := current
	for i := range reps {
		rep := &reps[i]
		if rep.BaseURL == "" {
			continue
		}
		if best == nil {
			best = rep
			continue
		}
		if rep.Height > best.Height || (rep.Height == best.Height && rep.Bandwidth > best.Bandwidth) {
			best = rep
		}
	}
	return best
}
