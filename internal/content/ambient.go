// Package content holds the built-in Ambient knowledge quiz.
package content

import "ambient-quiz-service/internal/domain"

// AmbientQuizID is the id the built-in quiz is served and seeded under.
const AmbientQuizID = "ambient"

// AmbientQuiz returns a fresh copy of the built-in quiz so callers may mutate it.
func AmbientQuiz() domain.Quiz {
	return domain.Quiz{
		ID:        AmbientQuizID,
		Title:     "Ambient Knowledge Quiz",
		Questions: ambientQuestions(),
		Tiers:     AmbientTiers(),
	}
}

// AmbientTiers is the achievement table for the ten-question quiz.
func AmbientTiers() []domain.Tier {
	return []domain.Tier{
		{Name: "Ambient Novice", MinScore: 0, MaxScore: 3, Color: "#6B7280", Description: "Just starting your Ambient journey"},
		{Name: "Blockchain Explorer", MinScore: 4, MaxScore: 5, Color: "#3B82F6", Description: "Understanding the basics"},
		{Name: "PoL Enthusiast", MinScore: 6, MaxScore: 7, Color: "#8B5CF6", Description: "Grasping Proof of Logits"},
		{Name: "AI Chain Expert", MinScore: 8, MaxScore: 9, Color: "#EC4899", Description: "Deep knowledge of AI blockchain"},
		{Name: "Ambient Master", MinScore: 10, MaxScore: 10, Color: "#F59E0B", Description: "Complete mastery of Ambient"},
	}
}

func ambientQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:            1,
			Prompt:        "What consensus mechanism does Ambient blockchain use?",
			Options:       []string{"Proof of Stake", "Proof of Logits", "Proof of Authority", "Delegated Proof of Stake"},
			CorrectOption: 1,
			Explanation:   "Ambient uses Proof of Logits (PoL), which leverages logits as verifiable 'mental states' in AI reasoning.",
		},
		{
			ID:            2,
			Prompt:        "What is the verification overhead in Ambient's Proof of Logits?",
			Options:       []string{"5%", "1%", "0.1%", "0.01%"},
			CorrectOption: 2,
			Explanation:   "Ambient achieves a remarkably low 0.1% verification overhead, making it extremely efficient.",
		},
		{
			ID:            3,
			Prompt:        "How much faster is Ambient's inference compared to legacy systems?",
			Options:       []string{"10x", "50x", "100x", "1000x"},
			CorrectOption: 2,
			Explanation:   "Ambient's hyper-optimized PoL consensus delivers 100x faster LLM operations compared to legacy systems.",
		},
		{
			ID:            4,
			Prompt:        "What is the parameter size of Ambient's AI model?",
			Options:       []string{"100B+", "300B+", "600B+", "1T+"},
			CorrectOption: 2,
			Explanation:   "Ambient operates on a massive 600B+ parameter model with provably secure inference.",
		},
		{
			ID:            5,
			Prompt:        "Which blockchain architecture is Ambient forked from?",
			Options:       []string{"Ethereum", "Solana", "Polkadot", "Cosmos"},
			CorrectOption: 1,
			Explanation:   "Ambient is a Solana fork chain that combines Solana's high speed with innovative PoL consensus.",
		},
		{
			ID:            6,
			Prompt:        "Who led Ambient's $7.2M seed funding round?",
			Options:       []string{"Sequoia Capital", "Paradigm", "a16z CSX", "Coinbase Ventures"},
			CorrectOption: 2,
			Explanation:   "Ambient's seed round was led by a16z CSX, along with Delphi Digital and Amber Group.",
		},
		{
			ID:            7,
			Prompt:        "In Proof of Logits, how many tokens does a validator need to verify?",
			Options:       []string{"All 4000 tokens", "500 tokens", "10 tokens", "Just 1 token"},
			CorrectOption: 3,
			Explanation:   "Mining requires 4000 tokens, but validation only needs to check 1 random token - making it cheap to verify but costly to mine.",
		},
		{
			ID:            8,
			Prompt:        "What is Ambient's core value proposition?",
			Options:       []string{"Speed as Currency", "Machine Intelligence as Currency", "Data as Currency", "Compute as Currency"},
			CorrectOption: 1,
			Explanation:   "Ambient's tagline is 'Machine Intelligence as Currency', representing AI-powered decentralized reasoning.",
		},
		{
			ID:            9,
			Prompt:        "What does SVM stand for in Ambient's architecture?",
			Options:       []string{"Secure Virtual Machine", "Scalable Verification Module", "Solana Virtual Machine", "Smart Validation Mechanism"},
			CorrectOption: 2,
			Explanation:   "SVM stands for Solana Virtual Machine, ensuring compatibility with Solana's ecosystem.",
		},
		{
			ID:            10,
			Prompt:        "By how much does Ambient reduce AI training costs?",
			Options:       []string{"2x", "5x", "10x", "20x"},
			CorrectOption: 2,
			Explanation:   "Ambient's architecture reduces training costs by 10x compared to existing solutions.",
		},
	}
}
