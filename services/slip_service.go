package services

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"log"
	"time"

	config "github.com/anjiri1684/exam_center/configs"
	"github.com/anjiri1684/exam_center/models"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"gorm.io/gorm"
)

//go:embed templates/ticket_slip.html
var slipTemplates embed.FS

var slipTemplate = template.Must(template.ParseFS(slipTemplates, "templates/ticket_slip.html"))

type slipData struct {
	TicketCode    string
	CandidateName string
	ExamTitle     string
	ExamVersion   string
	VisitTime     string
	Room          string
	IssuedOn      string
	QRDataURI     template.URL
}

// QR code edge lengths in pixels accepted by TicketQRCode.
const (
	MinQRSize = 64
	MaxQRSize = 1024
)

var ErrQRSize = fmt.Errorf("qr size must be between %d and %d pixels", MinQRSize, MaxQRSize)

// TicketQRCode renders the signed payload as a PNG QR code of size x size pixels.
func TicketQRCode(payload string, size int) ([]byte, error) {
	if size < MinQRSize || size > MaxQRSize {
		return nil, ErrQRSize
	}
	return qrcode.Encode(payload, qrcode.Medium, size)
}

// GenerateTicketSlip renders, prints and uploads the admission slip for a
// ticket, then stores its URL. It is meant to run in the background after a
// ticket is issued or reissued.
func GenerateTicketSlip(db *gorm.DB, ticketID uuid.UUID, qrPayload string) {
	if config.Config("CLOUDINARY_URL") == "" {
		return
	}

	var ticket models.Ticket
	if err := db.Preload("Candidate").Preload("ExamVersion").Preload("VisitSlot").
		First(&ticket, "id = ?", ticketID).Error; err != nil {
		log.Printf("🔥 Failed to load ticket %s for slip: %v", ticketID, err)
		return
	}

	htmlData, err := renderSlipHTML(&ticket, qrPayload)
	if err != nil {
		log.Printf("🔥 Failed to render slip HTML for ticket %s: %v", ticket.TicketCode, err)
		return
	}

	pdfBytes, err := generatePDFFromHTML(htmlData)
	if err != nil {
		log.Printf("🔥 Failed to generate slip PDF for ticket %s: %v", ticket.TicketCode, err)
		return
	}

	uploadURL, err := uploadToCloudinary(pdfBytes, ticket.TicketCode)
	if err != nil {
		log.Printf("🔥 Failed to upload slip for ticket %s to Cloudinary: %v", ticket.TicketCode, err)
		return
	}

	if err := SetSlipURL(db, ticket.ID, uploadURL); err != nil {
		log.Printf("🔥 Failed to store slip URL for ticket %s: %v", ticket.TicketCode, err)
		return
	}
	log.Printf("✅ Admission slip for ticket %s uploaded.", ticket.TicketCode)
}

func renderSlipHTML(ticket *models.Ticket, qrPayload string) (string, error) {
	png, err := TicketQRCode(qrPayload, 256)
	if err != nil {
		return "", err
	}

	data := slipData{
		TicketCode:    ticket.TicketCode,
		CandidateName: ticket.Candidate.FullName,
		ExamTitle:     ticket.ExamVersion.Title,
		ExamVersion:   ticket.ExamVersion.Version,
		IssuedOn:      ticket.CreatedAt.Format("January 2, 2006"),
		QRDataURI:     template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)),
	}
	if ticket.VisitSlot != nil {
		data.VisitTime = ticket.VisitSlot.StartTime.Format("Mon Jan 2, 2006 15:04")
		data.Room = ticket.VisitSlot.Room
	}

	var rendered bytes.Buffer
	if err := slipTemplate.Execute(&rendered, data); err != nil {
		return "", err
	}
	return rendered.String(), nil
}

func generatePDFFromHTML(htmlContent string) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(context.Background())
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, 30*time.Second)
	defer cancelTimeout()

	var pdfBuffer []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuffer, nil
}

func uploadToCloudinary(fileBytes []byte, ticketCode string) (string, error) {
	cld, err := cloudinary.NewFromURL(config.Config("CLOUDINARY_URL"))
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	uploadParams := uploader.UploadParams{
		PublicID:     fmt.Sprintf("slips/%s_%s", ticketCode, uuid.New().String()),
		Folder:       "exam_center_slips",
		ResourceType: "raw",
	}

	uploadResult, err := cld.Upload.Upload(ctx, bytes.NewReader(fileBytes), uploadParams)
	if err != nil {
		return "", err
	}

	return uploadResult.SecureURL, nil
}
