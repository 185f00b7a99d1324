package service

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"mime"
	"net/mail"
	"net/smtp"
	"strings"

	"github.com/franzbiely/flash-sale-system/internal/config"
	"github.com/franzbiely/flash-sale-system/internal/constants"
)

// PurchaseMailer 抢购流程的邮件发送契约
//
// 验证码路径的失败必须同步可见（准入阶段据此回滚验证码）；
// 结果通知路径由调用方按尽力而为处理。
type PurchaseMailer interface {
	SendVerifyCode(toEmail, code, locale string) error
	SendPurchaseResult(toEmail string, input PurchaseResultEmailInput, locale string) error
}

// PurchaseResultEmailInput 抢购结果通知邮件输入
type PurchaseResultEmailInput struct {
	ProductTitle string
	SaleTitle    string
	Kind         string // success / failure
	Detail       string // 失败原因（仅 failure）
}

// EmailService 邮件发送服务
type EmailService struct {
	cfg *config.EmailConfig
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

// SendVerifyCode 发送抢购验证码
func (s *EmailService) SendVerifyCode(toEmail, code, locale string) error {
	subject, body := buildVerifyCodeContent(code, locale, s.codeExpireMinutes())
	return s.sendTextEmail(toEmail, subject, body)
}

// codeExpireMinutes 邮件正文中的有效期，与配置保持一致
func (s *EmailService) codeExpireMinutes() int {
	if s.cfg != nil && s.cfg.VerifyCode.ExpireMinutes > 0 {
		return s.cfg.VerifyCode.ExpireMinutes
	}
	return 10
}

// SendPurchaseResult 发送抢购结果通知
func (s *EmailService) SendPurchaseResult(toEmail string, input PurchaseResultEmailInput, locale string) error {
	subject, body := buildPurchaseResultContent(input, locale)
	return s.sendTextEmail(toEmail, subject, body)
}

func (s *EmailService) sendTextEmail(toEmail, subject, body string) error {
	if s.cfg == nil || !s.cfg.Enabled {
		return ErrEmailServiceDisabled
	}
	if s.cfg.Host == "" || s.cfg.Port == 0 || s.cfg.From == "" {
		return ErrEmailServiceNotConfigured
	}
	if _, err := mail.ParseAddress(toEmail); err != nil {
		return ErrInvalidEmail
	}

	from := buildFromAddress(s.cfg.From, s.cfg.FromName)
	msg := buildEmailMessage(from, toEmail, subject, body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" || s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if s.cfg.UseSSL {
		return sendMailWithSSL(addr, auth, s.cfg.Host, s.cfg.From, []string{toEmail}, []byte(msg))
	}
	if s.cfg.UseTLS {
		return sendMailWithStartTLS(addr, auth, s.cfg.Host, s.cfg.From, []string{toEmail}, []byte(msg))
	}
	return sendMailPlain(addr, auth, s.cfg.Host, s.cfg.From, []string{toEmail}, []byte(msg))
}

func buildVerifyCodeContent(code, locale string, expireMinutes int) (string, string) {
	if normalizeLocale(locale) == constants.LocaleEN {
		subject := "Flash Sale Verification Code"
		body := fmt.Sprintf("Your verification code is: %s\n\nThe code expires in %d minutes. Do not share it.", code, expireMinutes)
		return subject, body
	}
	subject := "抢购验证码"
	body := fmt.Sprintf("您的验证码是：%s\n\n验证码 %d 分钟内有效，请勿泄露。", code, expireMinutes)
	return subject, body
}

func buildPurchaseResultContent(input PurchaseResultEmailInput, locale string) (string, string) {
	title := strings.TrimSpace(input.ProductTitle)
	if title == "" {
		title = strings.TrimSpace(input.SaleTitle)
	}
	if normalizeLocale(locale) == constants.LocaleEN {
		if input.Kind == constants.PurchaseNotifySuccess {
			subject := "Purchase Confirmed"
			body := fmt.Sprintf("Your purchase of %q has been confirmed.", title)
			return subject, body
		}
		subject := "Purchase Failed"
		body := fmt.Sprintf("Your purchase of %q was not completed.", title)
		if detail := strings.TrimSpace(input.Detail); detail != "" {
			body += "\n\nReason: " + detail
		}
		return subject, body
	}
	if input.Kind == constants.PurchaseNotifySuccess {
		subject := "抢购成功通知"
		body := fmt.Sprintf("您对「%s」的抢购已确认成功。", title)
		return subject, body
	}
	subject := "抢购失败通知"
	body := fmt.Sprintf("您对「%s」的抢购未能完成。", title)
	if detail := strings.TrimSpace(input.Detail); detail != "" {
		body += "\n\n原因：" + detail
	}
	return subject, body
}

func normalizeLocale(locale string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(locale)), "en") {
		return constants.LocaleEN
	}
	return constants.LocaleZH
}

func buildFromAddress(from, name string) string {
	if strings.TrimSpace(name) == "" {
		return from
	}
	encoded := mime.QEncoding.Encode("UTF-8", name)
	return (&mail.Address{Name: encoded, Address: from}).String()
}

func buildEmailMessage(from, to, subject, body string) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("From: %s\r\n", from))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", to))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", subject)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(body)
	return buf.String()
}

func sendMailWithSSL(addr string, auth smtp.Auth, host, from string, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := authIfSupported(client, auth); err != nil {
		return err
	}
	return sendSMTPData(client, from, to, msg)
}

func sendMailWithStartTLS(addr string, auth smtp.Auth, host, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
		return err
	}
	if err := authIfSupported(client, auth); err != nil {
		return err
	}
	return sendSMTPData(client, from, to, msg)
}

func sendMailPlain(addr string, auth smtp.Auth, host, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := authIfSupported(client, auth); err != nil {
		return err
	}
	return sendSMTPData(client, from, to, msg)
}

func authIfSupported(client *smtp.Client, auth smtp.Auth) error {
	if auth == nil {
		return nil
	}
	if ok, _ := client.Extension("AUTH"); !ok {
		return nil
	}
	return client.Auth(auth)
}

func sendSMTPData(client *smtp.Client, from string, to []string, msg []byte) error {
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
