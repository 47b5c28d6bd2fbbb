package diarize

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

type GoogleSpeech struct {
	c *speech.Client

	Encoding     speechpb.RecognitionConfig_AudioEncoding
	SampleRateHz int32
	Language     string
	MaxSpeakers  int32
}

func NewGoogleSpeech(ctx context.Context) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GoogleSpeech{
		c:            c,
		Encoding:     speechpb.RecognitionConfig_LINEAR16,
		SampleRateHz: 16000,
		Language:     "en-US",
		MaxSpeakers:  6,
	}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

func (g *GoogleSpeech) Transcribe(ctx context.Context, audio []byte) ([]Segment, error) {
	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   g.Encoding,
			SampleRateHertz:            g.SampleRateHz,
			LanguageCode:               g.Language,
			EnableAutomaticPunctuation: true,
			EnableWordTimeOffsets:      true,
			DiarizationConfig: &speechpb.SpeakerDiarizationConfig{
				EnableSpeakerDiarization: true,
				MinSpeakerCount:          1,
				MaxSpeakerCount:          g.MaxSpeakers,
			},
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return nil, err
	}

	// With diarization enabled the last result's first alternative carries
	// every word of the recording tagged with a speaker number.
	var words []*speechpb.WordInfo
	var confidence float64
	if n := len(resp.Results); n > 0 {
		alts := resp.Results[n-1].Alternatives
		if len(alts) > 0 {
			words = alts[0].Words
			confidence = float64(alts[0].Confidence)
		}
	}
	return segmentsFromWords(words, confidence), nil
}

// segmentsFromWords folds consecutive same-speaker words into speaker turns.
func segmentsFromWords(words []*speechpb.WordInfo, confidence float64) []Segment {
	var out []Segment
	var cur *Segment
	var text strings.Builder

	flush := func() {
		if cur != nil {
			cur.Text = text.String()
			out = append(out, *cur)
			cur = nil
			text.Reset()
		}
	}

	for _, w := range words {
		label := fmt.Sprintf("%d", w.SpeakerTag)
		startMS := w.StartTime.AsDuration().Milliseconds()
		endMS := w.EndTime.AsDuration().Milliseconds()

		if cur == nil || cur.Label != label {
			flush()
			cur = &Segment{Label: label, StartMS: startMS, Confidence: confidence}
		}
		if text.Len() > 0 {
			text.WriteByte(' ')
		}
		text.WriteString(w.Word)
		cur.EndMS = endMS
	}
	flush()
	return out
}
