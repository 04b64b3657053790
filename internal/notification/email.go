package notification

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"time"

	"go.uber.org/zap"

	"backend/internal/logger"
	"backend/internal/metrics"
)

// EmailService 邮件服务，任务进内存队列由工作协程异步发送
type EmailService struct {
	config *EmailConfig
	queue  chan *emailTask
	stopCh chan struct{}
}

// EmailConfig 邮件服务配置
type EmailConfig struct {
	SMTPHost    string
	SMTPPort    int
	Username    string
	Password    string
	FromAddress string
	FromName    string
	UseTLS      bool
	MaxRetries  int
	QueueSize   int
	Workers     int
}

type emailTask struct {
	to         string
	subject    string
	htmlBody   string
	retryCount int
}

// NewEmailService 创建邮件服务并启动工作协程
func NewEmailService(config *EmailConfig) *EmailService {
	if config == nil {
		config = &EmailConfig{}
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 1000
	}
	if config.Workers <= 0 {
		config.Workers = 3
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}

	svc := &EmailService{
		config: config,
		queue:  make(chan *emailTask, config.QueueSize),
		stopCh: make(chan struct{}),
	}
	for i := 0; i < config.Workers; i++ {
		go svc.worker()
	}
	return svc
}

// Send 异步发送邮件，队列满时直接报错交给调用方记日志
func (s *EmailService) Send(to, subject, htmlBody string) error {
	task := &emailTask{to: to, subject: subject, htmlBody: htmlBody}
	select {
	case s.queue <- task:
		return nil
	default:
		return fmt.Errorf("邮件队列已满")
	}
}

// Stop 停止工作协程
func (s *EmailService) Stop() {
	close(s.stopCh)
}

func (s *EmailService) worker() {
	for {
		select {
		case <-s.stopCh:
			return
		case task := <-s.queue:
			err := s.sendEmail(task)
			if err != nil {
				metrics.NotificationsDeliveredTotal.WithLabelValues("email", "failed").Inc()
				logger.Warn("邮件发送失败",
					zap.Error(err), zap.String("to", task.to), zap.Int("retry", task.retryCount))
				if task.retryCount < s.config.MaxRetries {
					task.retryCount++
					// 指数退避重试
					time.AfterFunc(time.Duration(task.retryCount*task.retryCount)*time.Second, func() {
						select {
						case s.queue <- task:
						default:
						}
					})
				}
				continue
			}
			metrics.NotificationsDeliveredTotal.WithLabelValues("email", "sent").Inc()
		}
	}
}

func (s *EmailService) sendEmail(task *emailTask) error {
	var msg bytes.Buffer
	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", s.config.FromName, s.config.FromAddress))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", task.to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", task.subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(task.htmlBody)

	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)
	if s.config.UseTLS {
		return s.sendWithTLS(addr, task.to, msg.Bytes())
	}
	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.SMTPHost)
	return smtp.SendMail(addr, auth, s.config.FromAddress, []string{task.to}, msg.Bytes())
}

func (s *EmailService) sendWithTLS(addr, to string, msg []byte) error {
	tlsConfig := &tls.Config{
		ServerName: s.config.SMTPHost,
	}
	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("TLS连接失败: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		return fmt.Errorf("创建SMTP客户端失败: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.SMTPHost)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP认证失败: %w", err)
	}
	if err := client.Mail(s.config.FromAddress); err != nil {
		return fmt.Errorf("设置发件人失败: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("设置收件人失败: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("获取数据写入器失败: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("写入邮件内容失败: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("关闭数据写入器失败: %w", err)
	}
	return client.Quit()
}
