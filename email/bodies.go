package email

import (
	"fmt"
	"strings"
)

// SigningLink builds the recipient-facing URL for the unauthenticated
// signing page.
func SigningLink(baseURL, agreementID string) string {
	return fmt.Sprintf("%s/sign/%s", strings.TrimRight(baseURL, "/"), agreementID)
}

// ReviewRequestBody is the message sent to the recipient when an agreement
// is dispatched for signature.
func ReviewRequestBody(recipientName, senderName, agreementTitle, signingLink string) string {
	return fmt.Sprintf(`
  <p>Hello <strong>%s</strong>,</p>

  <p>
    <strong>%s</strong> has created an agreement titled
    <strong>"%s"</strong> using the Digital Consent &amp; Agreement Tracker.
  </p>

  <p>Please review and sign the agreement using the link below:</p>

  <p style="text-align:center;">
    <a href="%s"
       style="background:#4f46e5;color:#fff;padding:12px 24px;
       text-decoration:none;border-radius:6px;font-weight:bold;">
       Sign Agreement
    </a>
  </p>

  <p>Once signed, a final copy will be emailed to both parties.</p>

  <p style="font-size:12px;color:#888;">
    This is an automated message. Please do not reply.
  </p>
`, recipientName, senderName, agreementTitle, signingLink)
}

// SignedCopyBody accompanies the signed PDF sent to both parties.
func SignedCopyBody(recipientName, agreementTitle string) string {
	return fmt.Sprintf(`
  <p>Hello <strong>%s</strong>,</p>

  <p>
    The agreement titled <strong>"%s"</strong> has been successfully signed.
  </p>

  <p>The signed PDF is attached for your records.</p>

  <p style="font-size:12px;color:#888;">
    Digital Consent &amp; Agreement Tracker<br/>
    This is an automated message. Please do not reply.
  </p>
`, recipientName, agreementTitle)
}

// RejectionNoticeBody informs the creator that the recipient declined.
func RejectionNoticeBody(creatorName, recipientName, agreementTitle string) string {
	return fmt.Sprintf(`
  <p>Hello <strong>%s</strong>,</p>

  <p>
    The agreement titled <strong>"%s"</strong> was rejected
    by <strong>%s</strong>.
  </p>

  <p>
    You can log in to your dashboard to review the agreement details
    and take further action.
  </p>

  <p style="font-size:12px;color:#888;">
    Digital Consent &amp; Agreement Tracker<br/>
    This is an automated message. Please do not reply.
  </p>
`, creatorName, agreementTitle, recipientName)
}
