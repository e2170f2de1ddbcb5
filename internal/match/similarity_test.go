package match

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NormalizeString", func() {
	It("should lowercase, strip accents and collapse punctuation", func() {
		Expect(NormalizeString("  Padaria São João #42! ")).To(Equal("padaria sao joao 42"))
	})

	It("should return empty for purely special characters", func() {
		Expect(NormalizeString("***")).To(Equal(""))
	})
})

var _ = Describe("LevenshteinDistance", func() {
	It("should be zero for two empty strings", func() {
		Expect(LevenshteinDistance("", "")).To(Equal(0))
	})

	It("should be the full length against an empty string", func() {
		Expect(LevenshteinDistance("", "abc")).To(Equal(3))
		Expect(LevenshteinDistance("abc", "")).To(Equal(3))
	})

	It("should count single-character edits", func() {
		Expect(LevenshteinDistance("kitten", "sitting")).To(Equal(3))
	})
})

var _ = Describe("FuzzySimilarity", func() {
	It("should be reflexive", func() {
		for _, s := range []string{"", "IFOOD", "Uber *Trip", "Padaria São João"} {
			Expect(FuzzySimilarity(s, s, true)).To(Equal(1.0))
		}
	})

	It("should be symmetric", func() {
		a, b := "IFOOD RESTAURANTE", "IFD RESTAURANTE SP"
		Expect(FuzzySimilarity(a, b, true)).To(Equal(FuzzySimilarity(b, a, true)))
	})

	It("should tolerate punctuation noise", func() {
		Expect(FuzzySimilarity("UBER *TRIP", "UBER TRIP", true)).To(BeNumerically(">=", 0.8))
	})

	It("should score zero when one side normalizes to empty", func() {
		Expect(FuzzySimilarity("***", "ifood", true)).To(Equal(0.0))
	})

	It("should grant the substring bonus proportional to the length ratio", func() {
		// "ifood" (5) inside "ifood sao paulo" (15): ratio 1-10/15 plus 5/15*0.3.
		Expect(FuzzySimilarity("IFOOD", "IFOOD SAO PAULO", true)).To(BeNumerically("~", 1.0/3+0.1, 1e-9))
	})

	It("should grant the first-word bonus when there is no containment", func() {
		// "starbucks centro" vs "starbucks mall": ratio 1-6/16 plus 0.15.
		Expect(FuzzySimilarity("Starbucks Centro", "Starbucks Mall", true)).To(BeNumerically("~", 0.775, 1e-9))
	})

	It("should apply only the substring bonus when both bonuses would apply", func() {
		// "mercado" (7) inside "mercado central sp" (18) also shares its
		// first word; the containment check wins and the first-word
		// bonus is not added on top.
		got := FuzzySimilarity("Mercado", "Mercado Central SP", true)
		substringOnly := (1 - 11.0/18) + 7.0/18*0.3
		Expect(got).To(BeNumerically("~", substringOnly, 1e-9))
	})

	It("should clamp to 1", func() {
		Expect(FuzzySimilarity("uber trips", "uber trip", true)).To(BeNumerically("<=", 1.0))
	})
})

var _ = Describe("AreSimilar", func() {
	It("should use the given threshold", func() {
		Expect(AreSimilar("IFOOD", "IFOOD", 0.8)).To(BeTrue())
		Expect(AreSimilar("IFOOD", "POSTO SHELL", 0.8)).To(BeFalse())
	})
})
