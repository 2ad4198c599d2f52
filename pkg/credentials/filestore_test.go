/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package credentials

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FileStore", func() {
	var (
		tmpDir string
		store  *FileStore
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "netmond-cred-store-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if store != nil {
			_ = store.Close()
		}
		Expect(os.RemoveAll(tmpDir)).To(Succeed())
	})

	writeCredFile := func(name, content string) {
		Expect(os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0600)).To(Succeed())
	}

	It("loads a bare-string file as a Secret", func() {
		writeCredFile("slack-webhook", "https://hooks.slack.com/original")

		var err error
		store, err = NewFileStore(tmpDir, testLogger())
		Expect(err).NotTo(HaveOccurred())

		cred, err := store.Get(context.Background(), "slack-webhook")
		Expect(err).NotTo(HaveOccurred())
		Expect(cred.Secret).To(Equal("https://hooks.slack.com/original"))
	})

	It("loads a JSON file into its structured fields", func() {
		writeCredFile("linux-server", `{"username":"netmon","secret":"","private_key":"-----BEGIN KEY-----"}`)

		var err error
		store, err = NewFileStore(tmpDir, testLogger())
		Expect(err).NotTo(HaveOccurred())

		cred, err := store.Get(context.Background(), "linux-server")
		Expect(err).NotTo(HaveOccurred())
		Expect(cred.Username).To(Equal("netmon"))
		Expect(cred.PrivateKey).To(Equal("-----BEGIN KEY-----"))
	})

	It("returns ErrNotFound for a reference with no file", func() {
		var err error
		store, err = NewFileStore(tmpDir, testLogger())
		Expect(err).NotTo(HaveOccurred())

		_, err = store.Get(context.Background(), "missing")
		Expect(err).To(MatchError(ErrNotFound))
	})

	It("reports zero references for an empty directory", func() {
		var err error
		store, err = NewFileStore(tmpDir, testLogger())
		Expect(err).NotTo(HaveOccurred())
		Expect(store.Count()).To(Equal(0))
	})

	It("picks up a rotated credential file via fsnotify", func() {
		writeCredFile("slack-webhook", "https://hooks.slack.com/old")

		var err error
		store, err = NewFileStore(tmpDir, testLogger())
		Expect(err).NotTo(HaveOccurred())

		watchCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		Expect(store.StartWatching(watchCtx)).To(Succeed())

		writeCredFile("slack-webhook", "https://hooks.slack.com/rotated")

		Eventually(func() string {
			cred, err := store.Get(context.Background(), "slack-webhook")
			if err != nil {
				return ""
			}
			return cred.Secret
		}, 5*time.Second, 200*time.Millisecond).Should(Equal("https://hooks.slack.com/rotated"))
	})
})
