package main

// testCases are the spoken notes the extraction model is scored on.
var testCases = []string{
	"I spoke with customer Amit Verma today. His phone number is 9988776655. He stays at 45 Park Street, Salt Lake, Kolkata. We discussed the demo and next steps.",
	"Met Rajesh Kumar. Phone 9123456789. Address is 12 MG Road, Bangalore. He is interested in the premium plan.",
	"Followed up with Priya Singh at 9876543210. Location: Flat 4B, Sunrise Apartments, Mumbai. Needs a quote for 50 users.",
	"Customer Sunita Rao, phone 8899776655, lives in Chennai, Anna Nagar. Discussion about renewal.",
	"Vikram Shah from Ahmedabad, Vastrapur. 0792345678. Confirmed the order for next week.",
	"Talking to Neha Gupta. 9900887766. Hauz Khas, Delhi. Wants to schedule a training session.",
	"Amitabh Bachchan? No, Amit Sharma from Noida Sec 15. 9888777666. Interested in CRM integration.",
	"Ravi Teja in Hyderabad, Jubilee Hills. 9000112233. Discussed API documentation.",
	"Suresh Raina, Muradnagar. 9555444333. Just a check-in call.",
	"Anjali Menon, Kochi, Edappally. 9444333222. Complained about support response time.",
}
