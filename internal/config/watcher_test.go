package config

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
)

func testWatcherLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

const validYAML = `
log_level: info
http_addr: ":8090"
credentials_dir: /etc/netmond/credentials
storage:
  database_path: /var/lib/netmond/metrics.db
  batch_size: 1000
  backup_dir: /var/lib/netmond/backups
`

var _ = Describe("Watcher", func() {
	var (
		dir  string
		path string
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		path = filepath.Join(dir, "netmond.yaml")
		Expect(os.WriteFile(path, []byte(validYAML), 0o600)).To(Succeed())
	})

	It("loads the initial configuration on construction", func() {
		w, err := NewWatcher(path, testWatcherLogger())
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Current().LogLevel).To(Equal("info"))
	})

	It("returns an error when the initial file is invalid", func() {
		Expect(os.WriteFile(path, []byte("log_level: shout\n"), 0o600)).To(Succeed())
		_, err := NewWatcher(path, testWatcherLogger())
		Expect(err).To(HaveOccurred())
	})

	It("picks up a valid edit made while watching", func() {
		w, err := NewWatcher(path, testWatcherLogger())
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		Expect(w.StartWatching(ctx)).To(Succeed())
		defer w.Close()

		Expect(os.WriteFile(path, []byte(`
log_level: debug
http_addr: ":8090"
credentials_dir: /etc/netmond/credentials
storage:
  database_path: /var/lib/netmond/metrics.db
  batch_size: 1000
  backup_dir: /var/lib/netmond/backups
`), 0o600)).To(Succeed())

		Eventually(func() string {
			return w.Current().LogLevel
		}).Should(Equal("debug"))
	})

	It("keeps the previous configuration when an edit fails validation", func() {
		w, err := NewWatcher(path, testWatcherLogger())
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		Expect(w.StartWatching(ctx)).To(Succeed())
		defer w.Close()

		Expect(os.WriteFile(path, []byte("log_level: shout\n"), 0o600)).To(Succeed())

		Consistently(func() string {
			return w.Current().LogLevel
		}).Should(Equal("info"))
	})
})
