package media

import (
	"errors"
	"testing"
)

const sampleManifest = `<?xml version="1.0" encoding="UTF-8"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static">
  <Period>
    <AdaptationSet contentType="video">
      <Representation height="240" bandwidth="300000">
        <BaseURL>DASH_240.mp4</BaseURL>
      </Representation>
      <Representation height="720" bandwidth="1800000">
        <BaseURL>DASH_720.mp4</BaseURL>
      </Representation>
      <Representation height="480" bandwidth="900000">
        <BaseURL>DASH_480.mp4</BaseURL>
      </Representation>
    </AdaptationSet>
    <AdaptationSet contentType="audio">
      <Representation bandwidth="64000">
        <BaseURL>DASH_AUDIO_64.mp4</BaseURL>
      </Representation>
      <Representation bandwidth="128000">
        <BaseURL>DASH_AUDIO_128.mp4</BaseURL>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`

func TestParseManifestPicksBestStreams(t *testing.T) {
	video, audio, err := parseManifest("https://v.redd.it/abc", []byte(sampleManifest))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if video != "https://v.redd.it/abc/DASH_720.mp4" {
		t.Fatalf("ожидали видеопоток 720p, получили %s", video)
	}
	if audio != "https://v.redd.it/abc/DASH_AUDIO_128.mp4" {
		t.Fatalf("ожидали аудиопоток 128k, получили %s", audio)
	}
}

func TestParseManifestWithoutAudio(t *testing.T) {
	const manifest = `<MPD><Period>
		<AdaptationSet contentType="video">
			<Representation height="480" bandwidth="900000"><BaseURL>DASH_480.mp4</BaseURL></Representation>
		</AdaptationSet>
	</Period></MPD>`

	video, audio, err := parseManifest("https://v.redd.it/xyz", []byte(manifest))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if video != "https://v.redd.it/xyz/DASH_480.mp4" {
		t.Fatalf("неожиданный видеопоток: %s", video)
	}
	if audio != "" {
		t.Fatalf("аудиопотока быть не должно, получили %s", audio)
	}
}

func TestParseManifestUntypedVideoSet(t *testing.T) {
	// Старые манифесты не указывают contentType: видеопоток распознаётся
	// по наличию высоты.
	const manifest = `<MPD><Period>
		<AdaptationSet>
			<Representation height="360" bandwidth="500000"><BaseURL>DASH_360.mp4</BaseURL></Representation>
		</AdaptationSet>
	</Period></MPD>`

	video, _, err := parseManifest("https://v.redd.it/old", []byte(manifest))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if video != "https://v.redd.it/old/DASH_360.mp4" {
		t.Fatalf("неожиданный видеопоток: %s", video)
	}
}

func TestParseManifestNoVideo(t *testing.T) {
	const manifest = `<MPD><Period>
		<AdaptationSet contentType="audio">
			<Representation bandwidth="64000"><BaseURL>DASH_AUDIO_64.mp4</BaseURL></Representation>
		</AdaptationSet>
	</Period></MPD>`

	_, _, err := parseManifest("https://v.redd.it/a", []byte(manifest))
	if !errors.Is(err, errNoVideoStream) {
		t.Fatalf("ожидали errNoVideoStream, получили %v", err)
	}
}

func TestParseManifestBrokenXML(t *testing.T) {
	_, _, err := parseManifest("https://v.redd.it/a", []byte("<MPD><Period>"))
	if err == nil {
		t.Fatalf("ожидали ошибку разбора")
	}
}
