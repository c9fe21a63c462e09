// Package telegram classifies digit photos sent to a Telegram bot.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Brownie44l1/digit-api/internal/model"
	"github.com/Brownie44l1/digit-api/internal/preprocess"
	"github.com/Brownie44l1/digit-api/internal/recognizer"
)

const (
	maxPhotoSize = 10 << 20

	startText = "Send a photo of a single handwritten digit (dark ink on light paper) and I will tell you which one it is."
	blankText = "I could not find a digit in that photo."
	failText  = "Sorry, something went wrong while reading that photo."
)

type Bot struct {
	api        *tgbotapi.BotAPI
	recognizer *recognizer.Recognizer
	client     *http.Client
}

func New(token string, rec *recognizer.Recognizer) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	api.Debug = false
	return &Bot{
		api:        api,
		recognizer: rec,
		client:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	log.Printf("Telegram bot @%s started", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			log.Printf("Telegram bot stopped")
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			if upd.Message != nil {
				b.handleMessage(upd.Message)
			}
		}
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			b.send(cid, startText)
		default:
			b.send(cid, "Unknown command")
		}
		return
	}
	if len(msg.Photo) == 0 {
		b.send(cid, startText)
		return
	}

	ph := msg.Photo[len(msg.Photo)-1]
	url, err := b.api.GetFileDirectURL(ph.FileID)
	if err != nil {
		log.Printf("telegram: get file: %v", err)
		b.send(cid, failText)
		return
	}
	data, err := b.download(url)
	if err != nil {
		log.Printf("telegram: download: %v", err)
		b.send(cid, failText)
		return
	}

	reply, thumb := b.classify(data)
	if thumb == nil {
		b.send(cid, reply)
		return
	}
	photo := tgbotapi.NewPhoto(cid, tgbotapi.FileBytes{Name: "seen.png", Bytes: thumb})
	photo.Caption = reply
	if _, err := b.api.Send(photo); err != nil {
		log.Printf("telegram: send photo: %v", err)
	}
}

// classify returns the reply text and, on success, the thumbnail of what the
// classifier saw.
func (b *Bot) classify(data []byte) (string, []byte) {
	img, err := preprocess.Decode(bytes.NewReader(data))
	if err != nil {
		return "That does not look like a JPEG or PNG image.", nil
	}
	res, err := b.recognizer.Recognize(img, preprocess.Options{Invert: true})
	switch {
	case errors.Is(err, recognizer.ErrBlankCanvas):
		return blankText, nil
	case errors.Is(err, model.ErrModelUnavailable):
		return "The model is not available right now.", nil
	case err != nil:
		log.Printf("telegram: recognize: %v", err)
		return failText, nil
	}
	return formatPrediction(res.Prediction), res.Thumbnail
}

func formatPrediction(p *model.Prediction) string {
	return fmt.Sprintf("Predicted: %d\nConfidence: %.1f%%", p.Digit, p.Confidence*100)
}

func (b *Bot) download(url string) ([]byte, error) {
	resp, err := b.client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPhotoSize))
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("telegram: send: %v", err)
	}
}
