// Package questions serves quiz content from a canned general-knowledge
// pool so session creation is instant. AI-backed generation is an
// external collaborator and plugs in behind the same signature.
package questions

import (
	"math/rand"

	"github.com/studyduo/pairquiz/internal/session"
)

var pool = []session.Question{
	{ID: 1, Question: "Which Indian state is known as the 'Land of the Rising Sun'?", Options: []string{"Assam", "Arunachal Pradesh", "Nagaland", "Manipur"}, CorrectAnswer: "Arunachal Pradesh", CorrectAnswerIndex: 1},
	{ID: 2, Question: "The Chipko Movement originated in which Indian state?", Options: []string{"Himachal Pradesh", "Uttarakhand", "Madhya Pradesh", "Rajasthan"}, CorrectAnswer: "Uttarakhand", CorrectAnswerIndex: 1},
	{ID: 3, Question: "Which Article of the Indian Constitution deals with the Right to Education?", Options: []string{"Article 19", "Article 21A", "Article 25", "Article 32"}, CorrectAnswer: "Article 21A", CorrectAnswerIndex: 1},
	{ID: 4, Question: "Which Indian city is known as the 'Manchester of South India'?", Options: []string{"Bangalore", "Coimbatore", "Chennai", "Hyderabad"}, CorrectAnswer: "Coimbatore", CorrectAnswerIndex: 1},
	{ID: 5, Question: "The Loktak Lake is located in which state?", Options: []string{"Assam", "Manipur", "Meghalaya", "Tripura"}, CorrectAnswer: "Manipur", CorrectAnswerIndex: 1},
	{ID: 6, Question: "Who was the first Indian to win an individual Olympic gold medal?", Options: []string{"PT Usha", "Abhinav Bindra", "Milkha Singh", "Sushil Kumar"}, CorrectAnswer: "Abhinav Bindra", CorrectAnswerIndex: 1},
	{ID: 7, Question: "The Nalanda University was located in which present-day Indian state?", Options: []string{"Uttar Pradesh", "Bihar", "West Bengal", "Odisha"}, CorrectAnswer: "Bihar", CorrectAnswerIndex: 1},
	{ID: 8, Question: "Which Indian state is the largest producer of coffee?", Options: []string{"Kerala", "Tamil Nadu", "Karnataka", "Andhra Pradesh"}, CorrectAnswer: "Karnataka", CorrectAnswerIndex: 2},
	{ID: 9, Question: "Which mountain pass connects Leh to Kashmir?", Options: []string{"Rohtang Pass", "Zoji La", "Nathu La", "Khardung La"}, CorrectAnswer: "Zoji La", CorrectAnswerIndex: 1},
	{ID: 10, Question: "The Indian Space Research Organisation (ISRO) headquarters is located in which city?", Options: []string{"Mumbai", "Chennai", "Bangalore", "Thiruvananthapuram"}, CorrectAnswer: "Bangalore", CorrectAnswerIndex: 2},
	{ID: 11, Question: "Which Indian state celebrates the festival of Onam?", Options: []string{"Tamil Nadu", "Karnataka", "Kerala", "Andhra Pradesh"}, CorrectAnswer: "Kerala", CorrectAnswerIndex: 2},
	{ID: 12, Question: "The Gir National Park is located in which state?", Options: []string{"Rajasthan", "Gujarat", "Madhya Pradesh", "Maharashtra"}, CorrectAnswer: "Gujarat", CorrectAnswerIndex: 1},
	{ID: 13, Question: "Which Indian city is known as the 'Silicon Valley of India'?", Options: []string{"Hyderabad", "Pune", "Bangalore", "Chennai"}, CorrectAnswer: "Bangalore", CorrectAnswerIndex: 2},
	{ID: 14, Question: "Which Indian freedom fighter was known as 'Netaji'?", Options: []string{"Jawaharlal Nehru", "Subhas Chandra Bose", "Sardar Patel", "Bhagat Singh"}, CorrectAnswer: "Subhas Chandra Bose", CorrectAnswerIndex: 1},
	{ID: 15, Question: "The Ajanta and Ellora Caves are located in which Indian state?", Options: []string{"Madhya Pradesh", "Maharashtra", "Karnataka", "Rajasthan"}, CorrectAnswer: "Maharashtra", CorrectAnswerIndex: 1},
	{ID: 16, Question: "Which is the highest civilian award in India?", Options: []string{"Padma Vibhushan", "Bharat Ratna", "Padma Bhushan", "Padma Shri"}, CorrectAnswer: "Bharat Ratna", CorrectAnswerIndex: 1},
	{ID: 17, Question: "The Kaziranga National Park is famous for which animal?", Options: []string{"Bengal Tiger", "Asiatic Lion", "One-horned Rhinoceros", "Indian Elephant"}, CorrectAnswer: "One-horned Rhinoceros", CorrectAnswerIndex: 2},
	{ID: 18, Question: "Which Indian city is called the 'Pink City'?", Options: []string{"Udaipur", "Jaisalmer", "Jaipur", "Jodhpur"}, CorrectAnswer: "Jaipur", CorrectAnswerIndex: 2},
	{ID: 19, Question: "The Battle of Plassey was fought in which year?", Options: []string{"1757", "1764", "1857", "1947"}, CorrectAnswer: "1757", CorrectAnswerIndex: 0},
	{ID: 20, Question: "Which Indian state has the highest literacy rate?", Options: []string{"Tamil Nadu", "Maharashtra", "Kerala", "Goa"}, CorrectAnswer: "Kerala", CorrectAnswerIndex: 2},
	{ID: 21, Question: "Which river is known as the 'Sorrow of Bihar'?", Options: []string{"Gandak", "Kosi", "Ganga", "Son"}, CorrectAnswer: "Kosi", CorrectAnswerIndex: 1},
	{ID: 22, Question: "The Indian National Congress was founded in which year?", Options: []string{"1885", "1905", "1857", "1947"}, CorrectAnswer: "1885", CorrectAnswerIndex: 0},
	{ID: 23, Question: "Which Indian state is the largest producer of tea?", Options: []string{"Kerala", "West Bengal", "Assam", "Tamil Nadu"}, CorrectAnswer: "Assam", CorrectAnswerIndex: 2},
	{ID: 24, Question: "The Qutub Minar is located in which city?", Options: []string{"Agra", "Delhi", "Jaipur", "Lucknow"}, CorrectAnswer: "Delhi", CorrectAnswerIndex: 1},
}

const DefaultCount = 10

// Random returns n shuffled questions from the pool, clamped to the
// pool size. The questions list is fixed for the session afterwards.
func Random(n int) []session.Question {
	if n <= 0 {
		n = DefaultCount
	}
	if n > len(pool) {
		n = len(pool)
	}

	picked := make([]session.Question, len(pool))
	for i, q := range pool {
		picked[i] = q
		picked[i].Options = append([]string(nil), q.Options...)
	}
	rand.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})
	return picked[:n]
}
